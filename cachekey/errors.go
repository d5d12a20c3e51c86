package cachekey

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
)

// ModuleCode 缓存 key 模块码
const ModuleCode = 72

// 错误码定义：72xxxx
const (
	ErrCodeNamespace   = 1
	ErrCodeFingerprint = 2
)

var (
	// ErrNamespace namespace 为空
	ErrNamespace = errcode.Register(errcode.New(ModuleCode, ErrCodeNamespace,
		"cachekey", "error.cachekey.namespace", "namespace 不能为空", http.StatusBadRequest))

	// ErrFingerprint 过滤条件无法序列化
	ErrFingerprint = errcode.Register(errcode.New(ModuleCode, ErrCodeFingerprint,
		"cachekey", "error.cachekey.fingerprint", "过滤条件无法序列化", http.StatusBadRequest))
)

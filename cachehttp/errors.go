package cachehttp

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
)

// ModuleCode HTTP 管理接口模块码
const ModuleCode = 73

const (
	ErrCodeValidation  = 1
	ErrCodeBadRequest  = 2
	ErrCodeFlushFailed = 3
	ErrCodeInternal    = 4
)

var (
	// ErrValidation 参数校验失败，字段详情放在 data.fields
	ErrValidation = errcode.Register(errcode.New(
		ModuleCode, ErrCodeValidation,
		"cachehttp", "error.cachehttp.validation_failed", "参数校验失败",
		http.StatusBadRequest,
	))

	// ErrBadRequest 请求无法解析
	ErrBadRequest = errcode.Register(errcode.New(
		ModuleCode, ErrCodeBadRequest,
		"cachehttp", "error.cachehttp.bad_request", "请求格式错误",
		http.StatusBadRequest,
	))

	// ErrFlushFailed 刷新缓存失败
	ErrFlushFailed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeFlushFailed,
		"cachehttp", "error.cachehttp.flush_failed", "缓存刷新失败",
		http.StatusInternalServerError,
	))

	// ErrInternal 未识别的内部错误
	ErrInternal = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInternal,
		"cachehttp", "error.cachehttp.internal", "服务内部错误",
		http.StatusInternalServerError,
	))
)

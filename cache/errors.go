package cache

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
)

// 模块码
const (
	ModuleCode = 70 // 缓存模块码
)

// 错误码定义
const (
	// 缓存层错误码：70xxxx
	ErrCodeCacheMiss     = 1
	ErrCodeStoreNotFound = 2
	ErrCodeInvalidKey    = 3
	ErrCodeSerialize     = 4
	ErrCodeDeserialize   = 5
	ErrCodeStoreGet      = 6
	ErrCodeStoreSet      = 7
	ErrCodeStoreDelete   = 8
	ErrCodeConfigInvalid = 9
	ErrCodeFlush         = 10
	ErrCodeDisabled      = 11
)

var (
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errcode.Register(errcode.New(
		ModuleCode, ErrCodeCacheMiss,
		"cache", "error.cache.miss", "缓存未命中",
		http.StatusOK,
	))

	// ErrStoreNotFound 存储后端未找到
	ErrStoreNotFound = errcode.Register(errcode.New(
		ModuleCode, ErrCodeStoreNotFound,
		"cache", "error.cache.store_not_found", "存储后端未找到",
		http.StatusInternalServerError,
	))

	// ErrInvalidKey 空 key
	ErrInvalidKey = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidKey,
		"cache", "error.cache.invalid_key", "缓存 key 不能为空",
		http.StatusBadRequest,
	))

	// ErrSerialize 序列化错误
	ErrSerialize = errcode.Register(errcode.New(
		ModuleCode, ErrCodeSerialize,
		"cache", "error.cache.serialize", "序列化失败",
		http.StatusInternalServerError,
	))

	// ErrDeserialize 反序列化错误
	ErrDeserialize = errcode.Register(errcode.New(
		ModuleCode, ErrCodeDeserialize,
		"cache", "error.cache.deserialize", "反序列化失败",
		http.StatusInternalServerError,
	))

	// ErrStoreGet 存储获取错误
	ErrStoreGet = errcode.Register(errcode.New(
		ModuleCode, ErrCodeStoreGet,
		"cache", "error.cache.store_get", "存储获取失败",
		http.StatusInternalServerError,
	))

	// ErrStoreSet 存储设置错误
	ErrStoreSet = errcode.Register(errcode.New(
		ModuleCode, ErrCodeStoreSet,
		"cache", "error.cache.store_set", "存储设置失败",
		http.StatusInternalServerError,
	))

	// ErrStoreDelete 存储删除错误
	ErrStoreDelete = errcode.Register(errcode.New(
		ModuleCode, ErrCodeStoreDelete,
		"cache", "error.cache.store_delete", "存储删除失败",
		http.StatusInternalServerError,
	))

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"cache", "error.cache.config_invalid", "缓存配置无效",
		http.StatusInternalServerError,
	))

	// ErrFlush 清空失败
	ErrFlush = errcode.Register(errcode.New(
		ModuleCode, ErrCodeFlush,
		"cache", "error.cache.flush", "缓存清空失败",
		http.StatusInternalServerError,
	))

	// ErrDisabled 缓存组件未启用
	ErrDisabled = errcode.Register(errcode.New(
		ModuleCode, ErrCodeDisabled,
		"cache", "error.cache.disabled", "缓存组件未启用",
		http.StatusServiceUnavailable,
	))
)

package store

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
)

// ModuleCode 存储模块码
const ModuleCode = 71

// 错误码定义：71xxxx
const (
	ErrCodeNotFound = 1
	ErrCodeGet      = 2
	ErrCodeSet      = 3
	ErrCodeDelete   = 4
	ErrCodeScan     = 5
	ErrCodeCounter  = 6
	ErrCodeFlush    = 7
)

var (
	// ErrNotFound key 不存在或已过期
	ErrNotFound = errcode.Register(errcode.New(ModuleCode, ErrCodeNotFound,
		"store", "error.store.not_found", "key 不存在", http.StatusNotFound))

	// ErrGet 读取失败
	ErrGet = errcode.Register(errcode.New(ModuleCode, ErrCodeGet,
		"store", "error.store.get", "存储读取失败", http.StatusServiceUnavailable))

	// ErrSet 写入失败
	ErrSet = errcode.Register(errcode.New(ModuleCode, ErrCodeSet,
		"store", "error.store.set", "存储写入失败", http.StatusServiceUnavailable))

	// ErrDelete 删除失败
	ErrDelete = errcode.Register(errcode.New(ModuleCode, ErrCodeDelete,
		"store", "error.store.delete", "存储删除失败", http.StatusServiceUnavailable))

	// ErrScan 扫描失败
	ErrScan = errcode.Register(errcode.New(ModuleCode, ErrCodeScan,
		"store", "error.store.scan", "存储扫描失败", http.StatusServiceUnavailable))

	// ErrCounter 计数器操作失败（含值不是整数）
	ErrCounter = errcode.Register(errcode.New(ModuleCode, ErrCodeCounter,
		"store", "error.store.counter", "计数器操作失败", http.StatusServiceUnavailable))

	// ErrFlush 清空失败
	ErrFlush = errcode.Register(errcode.New(ModuleCode, ErrCodeFlush,
		"store", "error.store.flush", "存储清空失败", http.StatusServiceUnavailable))
)

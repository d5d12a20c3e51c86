package kafka

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
)

// ModuleCode 失效广播模块码
const ModuleCode = 75

const (
	ErrCodePublish = 1
	ErrCodeClosed  = 2
	ErrCodeDecode  = 3
	ErrCodeStarted = 4
)

var (
	// ErrPublish 发送失效消息失败
	ErrPublish = errcode.Register(errcode.New(ModuleCode, ErrCodePublish,
		"kafka", "error.kafka.publish", "失效消息发送失败", http.StatusServiceUnavailable))

	// ErrClosed 总线已关闭
	ErrClosed = errcode.Register(errcode.New(ModuleCode, ErrCodeClosed,
		"kafka", "error.kafka.closed", "失效总线已关闭", http.StatusServiceUnavailable))

	// ErrDecode 消息格式错误
	ErrDecode = errcode.Register(errcode.New(ModuleCode, ErrCodeDecode,
		"kafka", "error.kafka.decode", "失效消息解析失败", http.StatusBadRequest))

	// ErrAlreadyStarted 重复启动消费
	ErrAlreadyStarted = errcode.Register(errcode.New(ModuleCode, ErrCodeStarted,
		"kafka", "error.kafka.started", "失效总线已在消费", http.StatusConflict))
)

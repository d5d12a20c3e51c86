// Package errcode provides layered error codes shared by the cache packages
// Error code format: MMBBBB (MM = module code, BBBB = business code)
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError hierarchical error code
// Carries a module, a message key for i18n, an HTTP status and an optional cause
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]any
	cause      error
}

// New creates a layered error
// moduleCode: module code (10-99)
// businessCode: business code (0001-9999)
// httpStatus: optional, defaults to 200
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusOK
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]any),
	}
}

// Error implements error
func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Code returns the full MMBBBB code
func (e *LayeredError) Code() int { return e.code }

// Module returns the module name
func (e *LayeredError) Module() string { return e.module }

// MsgKey returns the i18n message key
func (e *LayeredError) MsgKey() string { return e.msgKey }

// Message returns the message without the cause
func (e *LayeredError) Message() string { return e.msg }

// HTTPStatus returns the mapped HTTP status
func (e *LayeredError) HTTPStatus() int { return e.httpStatus }

// Data returns the context data
func (e *LayeredError) Data() map[string]any { return e.data }

// Unwrap supports errors.Is / errors.As chains
func (e *LayeredError) Unwrap() error { return e.cause }

// WithMsgf replaces the message (returns a new instance)
func (e *LayeredError) WithMsgf(format string, args ...any) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData adds one context value (returns a new instance)
func (e *LayeredError) WithData(key string, value any) *LayeredError {
	clone := *e
	clone.data = make(map[string]any, len(e.data)+1)
	for k, v := range e.data {
		clone.data[k] = v
	}
	clone.data[key] = value
	return &clone
}

// Wrap attaches the original error (returns a new instance)
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Is matches by code so wrapped clones still compare equal to the sentinel
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

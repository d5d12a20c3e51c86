// Package cachehttp exposes cache statistics and flush operations over HTTP (gin)
package cachehttp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// Response 统一响应格式
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

// OkJson 成功响应
func OkJson(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

// NoRouteHandler 404 统一 JSON 响应
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: http.StatusNotFound,
			Msg:  "路由不存在: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler 405 统一 JSON 响应
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "方法不允许: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError 按 LayeredError 的状态码、错误码和消息响应
// 其他错误统一包装为 ErrInternal
func HandleError(c *gin.Context, log logger.CtxLogger, err error) {
	if err == nil {
		return
	}

	var layered *errcode.LayeredError
	if !errors.As(err, &layered) {
		layered = ErrInternal.Wrap(err)
	}

	ctx := c.Request.Context()
	fields := []zap.Field{
		zap.Int("error_code", layered.Code()),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	if layered.HTTPStatus() >= http.StatusInternalServerError {
		log.ErrorCtx(ctx, "cache admin request failed", fields...)
	} else {
		log.WarnCtx(ctx, "cache admin request rejected", fields...)
	}

	var data any
	if len(layered.Data()) > 0 {
		data = layered.Data()
	}
	c.JSON(layered.HTTPStatus(), Response{
		Code: layered.Code(),
		Msg:  layered.Message(),
		Data: data,
	})
}

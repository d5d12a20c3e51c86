package cachehttp

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// TraceIDHeader 请求/响应中携带 TraceID 的 Header
const TraceIDHeader = "X-Trace-ID"

// TraceID 提取或生成 TraceID，写入请求 context 供日志使用，并回写响应 Header
// 已有 OTel Span 时使用 Span 的 TraceID
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		var traceID string
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = c.GetHeader(TraceIDHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))
		}

		c.Writer.Header().Set(TraceIDHeader, traceID)
		c.Next()
	}
}

// RequestLog 结构化请求日志：5xx Error，4xx Warn，其余 Info
func RequestLog(log logger.CtxLogger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorCtx(ctx, "HTTP 请求", fields...)
		case status >= http.StatusBadRequest:
			log.WarnCtx(ctx, "HTTP 请求", fields...)
		default:
			log.InfoCtx(ctx, "HTTP 请求", fields...)
		}
	}
}

// Recovery 捕获 panic，记录堆栈并返回统一 500 响应（不暴露堆栈）
func Recovery(log logger.CtxLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorCtx(c.Request.Context(), "Panic recovered",
					zap.Any("error", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
					Code: ErrInternal.Code(),
					Msg:  fmt.Sprintf("%s: %v", ErrInternal.Message(), r),
				})
			}
		}()
		c.Next()
	}
}

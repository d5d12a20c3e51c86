package cachehttp

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// Validatable 请求对象可选实现，Wrap 在调用业务逻辑前执行
type Validatable interface {
	Validate() error
}

// HandlerFunc 泛型 Handler 函数签名
// Req 支持 form/json tag，Resp 作为 data 返回
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap 包装 Handler，自动处理解析、校验、响应
func Wrap[Req any, Resp any](log logger.CtxLogger, handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := Parse(c, &req); err != nil {
			HandleError(c, log, ErrBadRequest.Wrap(err))
			return
		}

		if v, ok := any(&req).(Validatable); ok {
			if err := ValidateRequest(v); err != nil {
				HandleError(c, log, err)
				return
			}
		}

		resp, err := handler(c, &req)
		if err != nil {
			HandleError(c, log, err)
			return
		}
		OkJson(c, resp)
	}
}

// Parse 绑定 query（form tag），有 body 时再绑定 JSON
// chunked 请求 ContentLength 为 -1，按是否携带 body 判断
func Parse(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return err
	}
	if !hasBody(c.Request) {
		return nil
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

// ValidateRequest 将 ozzo-validation 错误转换为 ErrValidation
func ValidateRequest(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}

	errs, ok := err.(validation.Errors)
	if !ok {
		return ErrValidation.Wrap(err)
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return ErrValidation.WithData("fields", fields)
}

// Package health 聚合缓存栈各组件的健康检查结果
package health

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-tagcache/component"
)

// Status 健康状态枚举
type Status string

const (
	// StatusHealthy 健康
	StatusHealthy Status = "healthy"
	// StatusDegraded 降级（可用，但部分能力缺失，如存储无标签索引）
	StatusDegraded Status = "degraded"
	// StatusUnhealthy 不健康
	StatusUnhealthy Status = "unhealthy"
)

// Checker 是 component.HealthChecker 的别名，方便使用
type Checker = component.HealthChecker

// Degrader 检查项可选实现此接口
// Check 通过后返回非空原因表示降级运行
type Degrader interface {
	Degraded(ctx context.Context) string
}

// CheckResult 单个检查项的结果
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Response 健康检查响应
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
}

// IsHealthy 判断整体是否健康
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// IsDegraded 判断是否降级
func (r *Response) IsDegraded() bool {
	return r.Status == StatusDegraded
}

// Serving 降级仍可对外服务，只有 unhealthy 不可用
func (r *Response) Serving() bool {
	return r.Status != StatusUnhealthy
}

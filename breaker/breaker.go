// Package breaker 熔断器
//
// 后端连续失败或窗口错误率超过阈值时打开，打开期间调用立即返回 ErrCircuitOpen；
// 超过 Timeout 后进入半开状态放行少量试探请求，全部成功后关闭。
package breaker

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/errcode"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// ModuleCode 熔断模块码
const ModuleCode = 74

var (
	// ErrCircuitOpen 熔断器打开或半开试探名额已满
	ErrCircuitOpen = errcode.Register(errcode.New(ModuleCode, 1,
		"breaker", "error.breaker.open", "熔断器已打开", http.StatusServiceUnavailable))
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭（正常）
	StateClosed State = iota
	// StateOpen 打开（熔断）
	StateOpen
	// StateHalfOpen 半开（试探恢复）
	StateHalfOpen
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// StateChangeFunc 状态变化回调
type StateChangeFunc func(name string, from, to State)

// Breaker 单个资源的熔断器，并发安全
type Breaker struct {
	name     string
	config   Config
	state    *stateManager
	window   *window
	strategy Strategy
	logger   logger.CtxLogger
	metrics  *Metrics
	onChange []StateChangeFunc
}

// Option 熔断器选项
type Option func(*Breaker)

// WithLogger 设置日志，状态变化以 warn 级别记录
func WithLogger(l logger.CtxLogger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics 上报请求结果与状态
func WithMetrics(m *Metrics) Option {
	return func(b *Breaker) {
		b.metrics = m
	}
}

// OnStateChange 注册状态变化回调（同步调用）
func OnStateChange(fn StateChangeFunc) Option {
	return func(b *Breaker) {
		b.onChange = append(b.onChange, fn)
	}
}

// New 创建熔断器，cfg 零值字段使用默认值
func New(name string, cfg Config, opts ...Option) *Breaker {
	cfg.ApplyDefaults()
	b := &Breaker{
		name:     name,
		config:   cfg,
		state:    newStateManager(),
		window:   newWindow(cfg.WindowSize, cfg.BucketSize),
		strategy: StrategyByName(cfg.Strategy),
		logger:   logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.observe(b)
	}
	return b
}

// Name 资源名
func (b *Breaker) Name() string {
	return b.name
}

// Enabled 未启用时 Execute 直接调用 fn
func (b *Breaker) Enabled() bool {
	return b.config.Enabled
}

// State 当前状态
func (b *Breaker) State() State {
	return b.state.get()
}

// Execute 执行受保护的调用
//
// 调用方取消（context.Canceled）不计入失败；超时计为失败
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.config.Enabled {
		return fn(ctx)
	}

	allowed, from, to := b.state.tryAcquire(b.config)
	if from != to {
		b.stateChanged(ctx, from, to, "open timeout expired")
	}
	if !allowed {
		b.window.record(outcomeRejected)
		b.metrics.record(ctx, b.name, outcomeRejected)
		return ErrCircuitOpen.WithMsgf("熔断器 %s 已打开", b.name)
	}

	err := fn(ctx)
	switch {
	case err == nil:
		b.onSuccess(ctx)
	case errors.Is(err, context.Canceled):
		b.state.release()
	default:
		b.onFailure(ctx, err)
	}
	return err
}

func (b *Breaker) onSuccess(ctx context.Context) {
	b.window.record(outcomeSuccess)
	b.metrics.record(ctx, b.name, outcomeSuccess)
	if from, to := b.state.recordSuccess(b.config); from != to {
		b.stateChanged(ctx, from, to, "half-open probes succeeded")
	}
}

func (b *Breaker) onFailure(ctx context.Context, err error) {
	b.window.record(outcomeFailure)
	b.metrics.record(ctx, b.name, outcomeFailure)

	if from, to := b.state.recordFailure(); from != to {
		b.stateChanged(ctx, from, to, "half-open probe failed", zap.Error(err))
		return
	}

	snap := b.Snapshot()
	if snap.State == StateClosed && b.strategy.ShouldOpen(snap, b.config) {
		if from, to := b.state.open(); from != to {
			b.stateChanged(ctx, from, to, b.strategy.Name()+" threshold exceeded",
				zap.Int64("failures", snap.Failures),
				zap.Float64("error_rate", snap.ErrorRate),
				zap.Error(err))
		}
	}
}

// Reset 手动关闭熔断器并清空统计
func (b *Breaker) Reset() {
	from, to := b.state.reset()
	b.window.reset()
	if from != to {
		b.stateChanged(context.Background(), from, to, "manual reset")
	}
}

// Snapshot 当前窗口统计
func (b *Breaker) Snapshot() Snapshot {
	snap := b.window.snapshot()
	snap.Name = b.name
	snap.State, snap.ConsecutiveFailures = b.state.counters()
	return snap
}

func (b *Breaker) stateChanged(ctx context.Context, from, to State, reason string, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("breaker", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason),
	}, fields...)
	b.logger.WarnCtx(ctx, "circuit breaker state changed", fields...)
	b.metrics.recordTransition(ctx, b.name, to)
	for _, fn := range b.onChange {
		fn(b.name, from, to)
	}
}

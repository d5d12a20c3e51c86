package cachehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/health"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// Config HTTP 管理接口配置（配置段 "http"）
type Config struct {
	Addr string `mapstructure:"addr"` // 监听地址，默认 :8080
	Mode string `mapstructure:"mode"` // gin 模式：debug, release, test
	// RequestLog 是否记录请求日志
	RequestLog bool `mapstructure:"request_log"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{Addr: ":8080", Mode: gin.ReleaseMode, RequestLog: true}
}

// ApplyDefaults 填充零值
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Mode, validation.In(gin.DebugMode, gin.ReleaseMode, gin.TestMode)),
	)
}

// EngineOption NewEngine 可选项
type EngineOption func(*engineOptions)

type engineOptions struct {
	health *health.Aggregator
}

// WithHealth 注册 GET /health，agg 为 nil 时不注册
func WithHealth(agg *health.Aggregator) EngineOption {
	return func(o *engineOptions) {
		o.health = agg
	}
}

// NewEngine 创建 gin 引擎并注册 /cache 与 /metrics 路由
// 不使用 gin.Default()，日志与 panic 恢复走自定义中间件
func NewEngine(cfg Config, f *cache.Facade, c *cachemetrics.Collector, log logger.CtxLogger, opts ...EngineOption) *gin.Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	gin.SetMode(cfg.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(TraceID())
	if cfg.RequestLog {
		engine.Use(RequestLog(log, "/metrics", "/health"))
	}
	engine.Use(Recovery(log))

	engine.NoRoute(NoRouteHandler())
	engine.NoMethod(NoMethodHandler())

	NewHandler(f, c, log).Register(engine)
	if o.health != nil {
		engine.GET("/health", HealthHandler(o.health))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		cachemetrics.NewPrometheusCollector(c),
		collectors.NewGoCollector(),
	)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return engine
}

// Server 包装 http.Server，提供非阻塞启动与优雅关闭
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	addr     string
	logger   logger.CtxLogger
}

// NewServer creates a server for engine
func NewServer(addr string, engine *gin.Engine, log logger.CtxLogger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Server{engine: engine, addr: addr, logger: log}
}

// Start 监听端口后在后台处理请求，端口不可用时立即返回错误
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("端口 %s 不可用: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorCtx(context.Background(), "HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.InfoCtx(context.Background(), "HTTP server started", zap.String("addr", s.Addr()))
	return nil
}

// Addr 实际监听地址（端口为 0 时返回系统分配的端口）
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP Server 关闭失败: %w", err)
	}
	s.logger.InfoCtx(ctx, "HTTP server closed")
	return nil
}

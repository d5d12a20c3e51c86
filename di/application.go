// Package di 提供基于 samber/do 的依赖注入支持
package di

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/config"
	"github.com/KOMKZ/go-yogan-tagcache/health"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// App 缓存进程骨架
// Setup 加载配置、日志并启动缓存组件；Shutdown 按依赖顺序反向关闭
type App struct {
	injector *do.RootScope
	name     string
	loadOpts config.ProvideLoaderOptions

	loader *config.Loader
	log    *logger.CtxZapLogger
	cache  *cache.Component

	onReady    func(context.Context, *App) error
	onShutdown func(context.Context) error

	shutdownOnce sync.Once
	shutdownErr  error
	stopped      chan struct{}
}

// Option 应用选项
type Option func(*App)

// WithName 应用名称，写入日志和 /health 元数据
func WithName(name string) Option {
	return func(app *App) { app.name = name }
}

// WithConfigPath 配置目录（config.yaml 与 <env>.yaml）
func WithConfigPath(path string) Option {
	return func(app *App) { app.loadOpts.ConfigPath = path }
}

// WithConfigFile 显式配置文件，优先级高于配置目录
func WithConfigFile(file string) Option {
	return func(app *App) { app.loadOpts.ConfigFile = file }
}

// WithConfigPrefix 环境变量前缀
func WithConfigPrefix(prefix string) Option {
	return func(app *App) { app.loadOpts.ConfigPrefix = prefix }
}

// WithFlags 绑定命令行参数，bindings 为 配置 key -> flag 名称
func WithFlags(flags *pflag.FlagSet, bindings map[string]string) Option {
	return func(app *App) {
		app.loadOpts.Flags = flags
		app.loadOpts.FlagBindings = bindings
	}
}

// WithOnReady Run 在缓存就绪后调用，用于启动 HTTP 等外部接口
func WithOnReady(fn func(context.Context, *App) error) Option {
	return func(app *App) { app.onReady = fn }
}

// WithOnShutdown 在关闭容器前调用
func WithOnShutdown(fn func(context.Context) error) Option {
	return func(app *App) { app.onShutdown = fn }
}

// New 创建应用，Provider 在 Setup 时注册
func New(opts ...Option) *App {
	app := &App{
		injector: do.New(),
		name:     "tagcache",
		loadOpts: config.ProvideLoaderOptions{ConfigPath: "./configs"},
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Setup 注册 Provider，初始化配置和日志，启动 redis/kafka/cache
func (app *App) Setup(ctx context.Context) error {
	RegisterCoreProviders(app.injector, app.loadOpts, app.name)

	loader, err := do.Invoke[*config.Loader](app.injector)
	if err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	app.loader = loader

	log, err := do.Invoke[*logger.CtxZapLogger](app.injector)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	app.log = log

	if err := StartCoreComponents(ctx, app.injector, app.log); err != nil {
		return err
	}
	app.cache = do.MustInvoke[*cache.Component](app.injector)

	app.log.InfoCtx(ctx, "cache app ready",
		zap.String("name", app.name),
		zap.Bool("cache_enabled", app.cache.Facade() != nil))
	return nil
}

// Run Setup 后调用 OnReady，阻塞到 ctx 结束或收到 SIGINT/SIGTERM，然后优雅关闭
func (app *App) Run(ctx context.Context) error {
	if err := app.Setup(ctx); err != nil {
		return err
	}
	if app.onReady != nil {
		if err := app.onReady(ctx, app); err != nil {
			return fmt.Errorf("ready 回调失败: %w", err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
		app.log.InfoCtx(ctx, "shutdown requested", zap.Error(context.Cause(sigCtx)))
	case <-app.stopped:
		return app.shutdownErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

// Shutdown 调用 OnShutdown 后关闭容器，重复调用返回首次结果
func (app *App) Shutdown(ctx context.Context) error {
	app.shutdownOnce.Do(func() {
		defer close(app.stopped)
		if app.onShutdown != nil {
			if err := app.onShutdown(ctx); err != nil {
				app.warn(ctx, "shutdown 回调失败", err)
			}
		}
		if errs := app.injector.ShutdownWithContext(ctx); errs != nil {
			app.shutdownErr = errs
			app.warn(ctx, "injector shutdown 失败", errs)
			return
		}
		if app.log != nil {
			app.log.InfoCtx(ctx, "cache app stopped")
		}
	})
	return app.shutdownErr
}

func (app *App) warn(ctx context.Context, msg string, err error) {
	if app.log != nil {
		app.log.WarnCtx(ctx, msg, zap.Error(err))
	}
}

// Injector 获取 do.Injector
func (app *App) Injector() *do.RootScope {
	return app.injector
}

// Logger Setup 之前为 nil
func (app *App) Logger() *logger.CtxZapLogger {
	return app.log
}

// ConfigLoader Setup 之前为 nil
func (app *App) ConfigLoader() *config.Loader {
	return app.loader
}

// Cache Setup 之前为 nil
func (app *App) Cache() *cache.Component {
	return app.cache
}

// Facade 缓存门面，组件未启用时返回错误
func (app *App) Facade() (*cache.Facade, error) {
	return do.Invoke[*cache.Facade](app.injector)
}

// Collector 指标收集器，组件未启用时返回错误
func (app *App) Collector() (*cachemetrics.Collector, error) {
	return do.Invoke[*cachemetrics.Collector](app.injector)
}

// Health 聚合健康检查
func (app *App) Health() (*health.Aggregator, error) {
	return do.Invoke[*health.Aggregator](app.injector)
}

// IsHealthy 容器内所有 HealthChecker 均通过
func (app *App) IsHealthy(ctx context.Context) bool {
	return len(app.injector.HealthCheckWithContext(ctx)) == 0
}

package di

import (
	"context"

	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/cachekey"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/component"
	"github.com/KOMKZ/go-yogan-tagcache/config"
	"github.com/KOMKZ/go-yogan-tagcache/event"
	"github.com/KOMKZ/go-yogan-tagcache/health"
	"github.com/KOMKZ/go-yogan-tagcache/kafka"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/KOMKZ/go-yogan-tagcache/redis"
)

// ============================================
// 基础组件 Provider（Logger, Metrics）
// ============================================

// ProvideLoggerManager 创建 logger.Manager 的 Provider
// 依赖：config.Loader（读取 logger 配置段，缺失或非法时使用默认配置）
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return logger.NewManager(logger.DefaultManagerConfig()), nil
	}

	var cfg logger.ManagerConfig
	if err := loader.Unmarshal("logger", &cfg); err != nil {
		return logger.NewManager(logger.DefaultManagerConfig()), nil
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return logger.NewManager(logger.DefaultManagerConfig()), nil
	}
	return logger.NewManager(cfg), nil
}

// ProvideCtxLogger 创建命名 CtxZapLogger 的 Provider 工厂
func ProvideCtxLogger(moduleName string) func(do.Injector) (*logger.CtxZapLogger, error) {
	return func(i do.Injector) (*logger.CtxZapLogger, error) {
		mgr, err := do.Invoke[*logger.Manager](i)
		if err != nil {
			return logger.GetLogger(moduleName), nil
		}
		return mgr.GetLogger(moduleName), nil
	}
}

// ProvideMeterProvider 返回全局 OTel MeterProvider
// 测试中可用 do.OverrideValue 替换为 ManualReader 驱动的 Provider
func ProvideMeterProvider(i do.Injector) (metric.MeterProvider, error) {
	return otel.GetMeterProvider(), nil
}

// ============================================
// 基础设施 Provider（Redis, Event）
// ============================================

// ProvideRedisManager 创建 redis.Manager 的 Provider
// 未配置 redis 段时返回 nil（缓存将只使用内存存储）
func ProvideRedisManager(i do.Injector) (*redis.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	comp := redis.NewComponent()
	if err := comp.Init(context.Background(), loader); err != nil {
		return nil, err
	}
	mgr := comp.GetManager()
	if mgr == nil {
		return nil, nil
	}

	if mp, err := do.Invoke[metric.MeterProvider](i); err == nil && mp != nil {
		metrics := redis.NewMetrics(true)
		if err := component.RegisterProvider(mp, metrics); err != nil {
			return nil, err
		}
		mgr.SetMetrics(metrics)
	}
	return mgr, nil
}

// ProvideEventDispatcher 创建 event.Dispatcher 的 Provider
func ProvideEventDispatcher(i do.Injector) (event.Dispatcher, error) {
	log, err := do.Invoke[*logger.Manager](i)
	if err != nil {
		return event.NewDispatcher(), nil
	}
	return event.NewDispatcher(event.WithLogger(log.GetLogger(component.ComponentEvent))), nil
}

// ProvideInvalidationBus 创建跨实例失效广播总线
// 未配置或 kafka.enabled=false 时返回 nil，失效只在本实例生效
func ProvideInvalidationBus(i do.Injector) (*kafka.Bus, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	var cfg kafka.Config
	if err := loader.Unmarshal("kafka", &cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	log := logger.GetLogger(component.ComponentKafka)
	if mgr, err := do.Invoke[*logger.Manager](i); err == nil {
		log = mgr.GetLogger(component.ComponentKafka)
	}
	return kafka.NewBus(cfg, log)
}

// ============================================
// 缓存 Provider
// 依赖：Config, Logger, Redis(可选), Event(可选), Metrics(可选), Kafka(可选)
// ============================================

// ProvideCacheComponent 创建并启动 *cache.Component
// 组件注册后由 injector.Shutdown 负责停止
func ProvideCacheComponent(i do.Injector) (*cache.Component, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	comp := cache.NewComponent()
	if mgr, err := do.Invoke[*logger.Manager](i); err == nil {
		comp.SetLogger(mgr.GetLogger(cache.ComponentName))
	}
	if redisMgr, err := do.Invoke[*redis.Manager](i); err == nil && redisMgr != nil {
		comp.SetRedisManager(redisMgr)
	}
	if dispatcher, err := do.Invoke[event.Dispatcher](i); err == nil && dispatcher != nil {
		comp.SetEventDispatcher(dispatcher)
	}
	if mp, err := do.Invoke[metric.MeterProvider](i); err == nil && mp != nil {
		comp.SetMeterProvider(mp)
	}
	bus, err := do.Invoke[*kafka.Bus](i)
	if err != nil {
		return nil, err
	}
	if bus != nil {
		comp.SetBroadcaster(bus)
	}

	ctx := context.Background()
	if err := comp.Init(ctx, loader); err != nil {
		return nil, err
	}
	if err := comp.Start(ctx); err != nil {
		return nil, err
	}
	if bus != nil && comp.Facade() != nil {
		if err := bus.Start(ctx, comp.Facade().ApplyInvalidation); err != nil {
			_ = comp.Stop(ctx)
			return nil, err
		}
	}
	return comp, nil
}

// ProvideFacade 提供缓存门面，缓存禁用时返回 cache.ErrDisabled
func ProvideFacade(i do.Injector) (*cache.Facade, error) {
	comp, err := do.Invoke[*cache.Component](i)
	if err != nil {
		return nil, err
	}
	if comp.Facade() == nil {
		return nil, cache.ErrDisabled
	}
	return comp.Facade(), nil
}

// ProvideCollector 提供缓存指标收集器
func ProvideCollector(i do.Injector) (*cachemetrics.Collector, error) {
	comp, err := do.Invoke[*cache.Component](i)
	if err != nil {
		return nil, err
	}
	if comp.Collector() == nil {
		return nil, cache.ErrDisabled
	}
	return comp.Collector(), nil
}

// ProvideKeyGenerator 提供缓存 key 生成器
// 缓存禁用时仍按配置的版本（默认 v1）生成 key
func ProvideKeyGenerator(i do.Injector) (*cachekey.Generator, error) {
	comp, err := do.Invoke[*cache.Component](i)
	if err != nil {
		return nil, err
	}
	if g := comp.KeyGenerator(); g != nil {
		return g, nil
	}
	version := cachekey.DefaultVersion
	if cfg := comp.Config(); cfg != nil && cfg.KeyVersion != "" {
		version = cfg.KeyVersion
	}
	return cachekey.New(version), nil
}

// ============================================
// 健康检查 Provider
// ============================================

// ProvideHealthAggregator 汇总 cache、redis 与 kafka 的健康检查
// health.enabled=false 时返回 nil，管理接口不暴露 /health
func ProvideHealthAggregator(appName string) func(do.Injector) (*health.Aggregator, error) {
	return func(i do.Injector) (*health.Aggregator, error) {
		loader, err := do.Invoke[*config.Loader](i)
		if err != nil {
			return nil, err
		}

		cfg := health.DefaultConfig()
		if err := loader.Unmarshal("health", &cfg); err != nil {
			return nil, err
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if !cfg.Enabled {
			return nil, nil
		}

		agg := health.NewAggregator(cfg.Timeout)
		agg.SetMetadata("service", appName)
		if comp, err := do.Invoke[*cache.Component](i); err == nil {
			agg.Register(comp)
		}
		if mgr, err := do.Invoke[*redis.Manager](i); err == nil && mgr != nil {
			agg.Register(redis.NewHealthChecker(mgr))
		}
		if bus, err := do.Invoke[*kafka.Bus](i); err == nil && bus != nil {
			agg.Register(bus)
		}
		return agg, nil
	}
}

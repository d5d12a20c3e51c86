package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/breaker"
	"github.com/KOMKZ/go-yogan-tagcache/cachekey"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/component"
	"github.com/KOMKZ/go-yogan-tagcache/event"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
	frameworkRedis "github.com/KOMKZ/go-yogan-tagcache/redis"
	"github.com/KOMKZ/go-yogan-tagcache/store"
)

// ComponentName 组件名称
const ComponentName = "cache"

const (
	reportTimeout = 5 * time.Second
	pruneTimeout  = time.Minute
)

// Component 缓存组件
type Component struct {
	config *Config
	log    *logger.CtxZapLogger

	// 外部依赖（需外部注入）
	redisManager  *frameworkRedis.Manager
	dispatcher    event.Dispatcher
	meterProvider metric.MeterProvider
	broadcaster   Broadcaster

	stores       map[string]store.Store
	metricsStore store.Store
	facade       *Facade
	collector    *cachemetrics.Collector
	keys         *cachekey.Generator
	breaker      *breaker.Breaker
	unsubscribe  event.UnsubscribeFunc
	scheduler    gocron.Scheduler
	pruner       store.TagPruner
}

var (
	_ component.Component     = (*Component)(nil)
	_ component.HealthChecker = (*Component)(nil)
)

// NewComponent 创建缓存组件
func NewComponent() *Component {
	return &Component{}
}

// Name 返回组件名称
func (c *Component) Name() string {
	return ComponentName
}

// DependsOn 依赖的组件
func (c *Component) DependsOn() []string {
	return []string{
		component.ComponentConfig,
		component.ComponentLogger,
		component.OptionalPrefix + component.ComponentRedis,
		component.OptionalPrefix + component.ComponentEvent,
	}
}

// Init 加载并校验配置；缺少 cache 配置段时组件保持禁用
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	var cfg Config
	if err := loader.Unmarshal(ComponentName, &cfg); err != nil {
		cfg = Config{Enabled: false}
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return ErrConfigInvalid.Wrap(err)
	}

	c.config = &cfg
	if c.log == nil {
		c.log = logger.GetLogger(ComponentName)
	}
	return nil
}

// Start 创建存储、指标收集器和门面，订阅失效事件，启动定时报告
func (c *Component) Start(ctx context.Context) error {
	if c.config == nil {
		return ErrConfigInvalid.WithMsgf("缓存组件未初始化")
	}
	if !c.config.Enabled {
		c.log.InfoCtx(ctx, "cache component disabled")
		return nil
	}

	c.initStores(ctx)
	data := c.dataStore(ctx)
	c.metricsStore = c.resolveMetricsStore(ctx)

	c.collector = cachemetrics.New(c.metricsStore,
		cachemetrics.WithDataStore(data),
		cachemetrics.WithLogger(c.log),
		cachemetrics.WithTTL(c.config.MetricsTTL),
		cachemetrics.WithSlowThreshold(c.config.SlowThreshold),
		cachemetrics.WithMetricsEnabled(c.config.MetricsEnabled),
	)
	if err := component.RegisterProvider(c.meterProvider, c.collector); err != nil {
		return fmt.Errorf("register cache metrics: %w", err)
	}

	guarded, err := c.guardStore(data)
	if err != nil {
		return err
	}

	c.keys = cachekey.New(c.config.KeyVersion)
	c.facade = NewFacade(guarded,
		WithLogger(c.log),
		WithRecorder(c.collector),
		WithTTLTable(NewTTLTable(c.config.TTLs, c.config.DefaultTTL)),
		WithBroadcaster(c.broadcaster),
	)

	if c.dispatcher != nil && len(c.config.InvalidationRules) > 0 {
		c.unsubscribe = NewInvalidator(c.facade, c.config.InvalidationRules, c.log).Subscribe(c.dispatcher)
	}

	if p, ok := data.(store.TagPruner); ok {
		c.pruner = p
	}
	if err := c.startScheduler(); err != nil {
		return err
	}

	c.log.InfoCtx(ctx, "cache component started",
		zap.String("store", data.Name()),
		zap.Bool("tags", c.facade.SupportsTags()),
		zap.String("key_version", c.config.KeyVersion))
	return nil
}

// Stop 停止定时任务、取消订阅并关闭存储
func (c *Component) Stop(ctx context.Context) error {
	if c.scheduler != nil {
		if err := c.scheduler.Shutdown(); err != nil {
			c.log.WarnCtx(ctx, "cache scheduler shutdown failed", zap.Error(err))
		}
		c.scheduler = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}

	closed := make(map[store.Store]struct{})
	closeStore := func(s store.Store) {
		if s == nil {
			return
		}
		if _, ok := closed[s]; ok {
			return
		}
		closed[s] = struct{}{}
		if err := s.Close(); err != nil {
			c.log.WarnCtx(ctx, "cache store close failed", zap.String("store", s.Name()), zap.Error(err))
		}
	}
	for _, s := range c.stores {
		closeStore(s)
	}
	closeStore(c.metricsStore)
	c.stores = nil
	c.metricsStore = nil
	c.pruner = nil

	if c.log != nil {
		c.log.InfoCtx(ctx, "cache component stopped")
	}
	return nil
}

// Shutdown implements do.ShutdownerWithContextAndError
func (c *Component) Shutdown(ctx context.Context) error {
	return c.Stop(ctx)
}

// HealthCheck implements do.HealthcheckerWithContext
func (c *Component) HealthCheck(ctx context.Context) error {
	return c.Check(ctx)
}

// initStores 按名称顺序创建所有存储，失败的存储记录警告后跳过
func (c *Component) initStores(ctx context.Context) {
	c.stores = make(map[string]store.Store, len(c.config.Stores))

	names := make([]string, 0, len(c.config.Stores))
	for name := range c.config.Stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := c.getOrCreateStore(name); err != nil {
			c.log.WarnCtx(ctx, "failed to create store, skipping",
				zap.String("name", name),
				zap.Error(err))
		}
	}
}

func (c *Component) getOrCreateStore(name string) (store.Store, error) {
	if s, ok := c.stores[name]; ok {
		return s, nil
	}
	cfg, ok := c.config.Stores[name]
	if !ok {
		return nil, ErrStoreNotFound.WithMsgf("存储后端未找到: %s", name)
	}
	s, err := c.createStore(name, cfg)
	if err != nil {
		return nil, err
	}
	c.stores[name] = s
	return s, nil
}

// createStore 创建存储后端
func (c *Component) createStore(name string, cfg StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case StoreTypeMemory:
		return store.NewMemoryStore(name, cfg.MaxSize), nil

	case StoreTypeRedis:
		if c.redisManager == nil {
			return nil, ErrStoreNotFound.WithMsgf("Redis Manager 未初始化")
		}
		client := c.redisManager.Client(cfg.Instance)
		if client == nil {
			return nil, ErrStoreNotFound.WithMsgf("Redis 实例未找到: %s", cfg.Instance)
		}
		return store.NewRedisStore(name, client, cfg.KeyPrefix), nil

	case StoreTypeChain:
		layers := make([]store.Store, 0, len(cfg.Layers))
		for _, layerName := range cfg.Layers {
			layer, err := c.getOrCreateStore(layerName)
			if err != nil {
				return nil, err
			}
			layers = append(layers, layer)
		}
		chain, err := store.NewChainStore(name, layers...)
		if err != nil {
			return nil, ErrConfigInvalid.Wrap(err)
		}
		return chain, nil

	default:
		return nil, ErrConfigInvalid.WithMsgf("未知的存储类型: %s", cfg.Type)
	}
}

// dataStore 配置的数据存储不可用时退化为内存存储
func (c *Component) dataStore(ctx context.Context) store.Store {
	if s, ok := c.stores[c.config.Store]; ok {
		return s
	}
	c.log.WarnCtx(ctx, "cache store unavailable, using memory store",
		zap.String("store", c.config.Store))
	s := store.NewMemoryStore(c.config.Store, defaultMemoryMaxSize)
	c.stores[c.config.Store] = s
	return s
}

// resolveMetricsStore 未配置时按数据存储推导：
// redis 使用同一实例和 cache_metrics:<prefix> 前缀，其余使用独立的内存存储
func (c *Component) resolveMetricsStore(ctx context.Context) store.Store {
	if c.config.MetricsStore != "" {
		if s, ok := c.stores[c.config.MetricsStore]; ok {
			return s
		}
		c.log.WarnCtx(ctx, "cache metrics store unavailable, deriving one",
			zap.String("store", c.config.MetricsStore))
	}

	name := c.config.Store
	for {
		cfg, ok := c.config.Stores[name]
		if !ok || cfg.Type != StoreTypeChain || len(cfg.Layers) == 0 {
			break
		}
		name = cfg.Layers[len(cfg.Layers)-1]
	}

	if rs, ok := c.stores[name].(*store.RedisStore); ok {
		return store.NewRedisStore(name+":metrics", rs.Client(), metricsKeyPrefix+rs.Prefix())
	}
	return store.NewMemoryStore(name+":metrics", 0)
}

// guardStore 启用熔断时包装数据存储，指标收集器仍直接访问原存储
func (c *Component) guardStore(data store.Store) (store.Store, error) {
	if !c.config.Breaker.Enabled {
		return data, nil
	}
	metrics := breaker.NewMetrics(c.config.MetricsEnabled)
	if err := component.RegisterProvider(c.meterProvider, metrics); err != nil {
		return nil, fmt.Errorf("register breaker metrics: %w", err)
	}
	c.breaker = breaker.New(data.Name(), c.config.Breaker,
		breaker.WithLogger(c.log),
		breaker.WithMetrics(metrics),
	)
	return store.NewGuardedStore(data, c.breaker), nil
}

// startScheduler 注册定时任务：统计报告、标签集合清理；没有任务时不创建调度器
func (c *Component) startScheduler() error {
	type job struct {
		name     string
		interval time.Duration
		task     func()
	}
	var jobs []job
	if c.config.ReportInterval > 0 {
		jobs = append(jobs, job{"cache-stats-report", c.config.ReportInterval, c.report})
	}
	if c.pruner != nil && c.config.TagPruneInterval > 0 {
		jobs = append(jobs, job{"cache-tag-prune", c.config.TagPruneInterval, c.pruneTags})
	}
	if len(jobs) == 0 {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create cache scheduler: %w", err)
	}
	for _, j := range jobs {
		_, err = s.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.task),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName(j.name),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	s.Start()
	c.scheduler = s
	return nil
}

// pruneTags 从标签集合中移除已过期的 key
func (c *Component) pruneTags() {
	if c.pruner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	removed, err := c.pruner.PruneTags(ctx)
	if err != nil {
		c.log.WarnCtx(ctx, "cache tag prune failed", zap.Error(err))
		return
	}
	c.log.InfoCtx(ctx, "cache tag sets pruned", zap.Int64("removed", removed))
}

func (c *Component) report() {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	st := c.collector.OverallStats(ctx)
	c.log.InfoCtx(ctx, "cache stats",
		zap.Int64("hits", st.Hits),
		zap.Int64("misses", st.Misses),
		zap.Float64("hit_rate", st.HitRate),
		zap.Int64("slow_operations", st.SlowOperations),
		zap.Int64("cache_size", st.CacheSize))
}

// SetRedisManager 设置 Redis 管理器
// 使用 redis 存储时需在 Start 之前调用
func (c *Component) SetRedisManager(manager *frameworkRedis.Manager) {
	c.redisManager = manager
}

// SetEventDispatcher 设置事件分发器（可选）
func (c *Component) SetEventDispatcher(dispatcher event.Dispatcher) {
	c.dispatcher = dispatcher
}

// SetBroadcaster 设置跨实例失效广播（可选）
func (c *Component) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// SetMeterProvider 设置 OTel MeterProvider（可选）
func (c *Component) SetMeterProvider(mp metric.MeterProvider) {
	c.meterProvider = mp
}

// SetLogger 替换默认的 cache 模块日志
func (c *Component) SetLogger(l *logger.CtxZapLogger) {
	c.log = l
}

// Config 返回生效的配置
func (c *Component) Config() *Config {
	return c.config
}

// Facade 返回缓存门面，未启用时为 nil
func (c *Component) Facade() *Facade {
	return c.facade
}

// Collector 返回指标收集器，未启用时为 nil
func (c *Component) Collector() *cachemetrics.Collector {
	return c.collector
}

// KeyGenerator 返回 key 生成器，未启用时为 nil
func (c *Component) KeyGenerator() *cachekey.Generator {
	return c.keys
}

// Breaker 返回数据存储的熔断器，未启用时为 nil
func (c *Component) Breaker() *breaker.Breaker {
	return c.breaker
}

// GetHealthChecker 获取健康检查器
func (c *Component) GetHealthChecker() component.HealthChecker {
	return c
}

// Check 健康检查：在数据存储上写、读、删一个随机探测 key
func (c *Component) Check(ctx context.Context) error {
	if c.facade == nil {
		return nil // 未启用时视为健康
	}

	s := c.facade.Store()
	probe := "__health_check__:" + uuid.NewString()
	if err := s.Set(ctx, probe, []byte("ok"), 10*time.Second); err != nil {
		return err
	}
	if _, err := s.Get(ctx, probe); err != nil {
		return err
	}
	return s.Delete(ctx, probe)
}

// Degraded 数据存储无标签索引时返回原因，FlushTags 将退化为整体清空
func (c *Component) Degraded(ctx context.Context) string {
	if c.facade == nil || c.facade.SupportsTags() {
		return ""
	}
	return fmt.Sprintf("store %s has no tag index", c.facade.Store().Name())
}

// Package cachemetrics records cache hit/miss/slow-operation counters in a
// store and exposes aggregate, per-tag and per-key statistics.
//
// All counters live in the metrics store and are updated only through
// Incr/IncrBy + Expire, so any number of processes can share one store.
// Failures are logged and never returned to the caller.
package cachemetrics

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/KOMKZ/go-yogan-tagcache/store"
)

const (
	// DefaultTTL 每个计数器 key 的过期时间
	DefaultTTL = 24 * time.Hour

	// DefaultSlowThreshold 慢操作阈值
	DefaultSlowThreshold = 100 * time.Millisecond

	// DefaultTopKeys Export 中 top_keys 的数量
	DefaultTopKeys = 10
)

// 计数器 key 布局（位于 metrics store 内）
const (
	keyHits      = "hits"
	keyMisses    = "misses"
	keySlow      = "slow_operations"
	tagPrefix    = "tags:"
	keyPrefix    = "keys:"
	suffixHits   = ":hits"
	suffixMisses = ":misses"
	suffixDurSum = ":duration_sum_us"
	suffixDurCnt = ":duration_count"
	outcomeHit   = "hit"
	outcomeMiss  = "miss"
	metricsName  = "cache"
)

// Collector 缓存指标收集器
type Collector struct {
	store         store.Store
	data          store.Store
	logger        logger.CtxLogger
	ttl           time.Duration
	slowThreshold time.Duration
	now           func() time.Time

	enabled    bool
	registered bool
	mu         sync.RWMutex

	hitsCounter   metric.Int64Counter
	missesCounter metric.Int64Counter
	slowCounter   metric.Int64Counter
	duration      metric.Float64Histogram
}

// Option 配置 Collector
type Option func(*Collector)

// WithLogger 设置日志
func WithLogger(l logger.CtxLogger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTTL 设置计数器过期时间
func WithTTL(ttl time.Duration) Option {
	return func(c *Collector) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSlowThreshold 设置慢操作阈值
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// WithDataStore 设置被统计的数据存储（用于 MemoryUsage / CacheSize）
func WithDataStore(s store.Store) Option {
	return func(c *Collector) {
		c.data = s
	}
}

// WithMetricsEnabled 是否导出 OpenTelemetry 指标
func WithMetricsEnabled(enabled bool) Option {
	return func(c *Collector) {
		c.enabled = enabled
	}
}

// New 创建 Collector，counters 存放在 metricsStore 中
func New(metricsStore store.Store, opts ...Option) *Collector {
	c := &Collector{
		store:         metricsStore,
		logger:        logger.NewNopLogger(),
		ttl:           DefaultTTL,
		slowThreshold: DefaultSlowThreshold,
		now:           time.Now,
		enabled:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SlowThreshold 返回慢操作阈值
func (c *Collector) SlowThreshold() time.Duration {
	return c.slowThreshold
}

// RecordHit 记录一次命中（全局、每个标签、每个 key）
func (c *Collector) RecordHit(ctx context.Context, key string, tags []string, d time.Duration) {
	c.record(ctx, outcomeHit, key, tags, d)
}

// RecordMiss 记录一次未命中
func (c *Collector) RecordMiss(ctx context.Context, key string, tags []string, d time.Duration) {
	c.record(ctx, outcomeMiss, key, tags, d)
}

// RecordSlowOperation d 超过阈值时计数并打印警告，与命中/未命中无关
// 返回是否判定为慢操作
func (c *Collector) RecordSlowOperation(ctx context.Context, key string, tags []string, d time.Duration) bool {
	if d <= c.slowThreshold {
		return false
	}
	c.incr(ctx, keySlow)

	c.mu.RLock()
	if c.registered {
		c.slowCounter.Add(ctx, 1)
	}
	c.mu.RUnlock()

	c.logger.WarnCtx(ctx, "slow cache operation",
		zap.String("key", key),
		zap.Strings("tags", tags),
		zap.Duration("duration", d),
		zap.Duration("threshold", c.slowThreshold))
	return true
}

func (c *Collector) record(ctx context.Context, outcome, key string, tags []string, d time.Duration) {
	global, suffix := keyHits, suffixHits
	if outcome == outcomeMiss {
		global, suffix = keyMisses, suffixMisses
	}

	c.incr(ctx, global)
	for _, tag := range tags {
		if tag != "" {
			c.incr(ctx, tagPrefix+tag+suffix)
		}
	}
	if key != "" {
		c.incr(ctx, keyPrefix+key+suffix)
		c.recordDuration(ctx, key, d)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.registered {
		return
	}
	if outcome == outcomeHit {
		c.hitsCounter.Add(ctx, 1)
	} else {
		c.missesCounter.Add(ctx, 1)
	}
	c.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// recordDuration 累加耗时总和与次数，平均值在读取时计算
func (c *Collector) recordDuration(ctx context.Context, key string, d time.Duration) {
	c.incrBy(ctx, keyPrefix+key+suffixDurSum, d.Microseconds())
	c.incr(ctx, keyPrefix+key+suffixDurCnt)
}

func (c *Collector) incr(ctx context.Context, key string) {
	c.incrBy(ctx, key, 1)
}

func (c *Collector) incrBy(ctx context.Context, key string, delta int64) {
	if _, err := c.store.IncrBy(ctx, key, delta); err != nil {
		c.logger.WarnCtx(ctx, "cache metrics update failed", zap.String("counter", key), zap.Error(err))
		return
	}
	if _, err := c.store.Expire(ctx, key, c.ttl); err != nil {
		c.logger.WarnCtx(ctx, "cache metrics expire failed", zap.String("counter", key), zap.Error(err))
	}
}

// counter 读取计数器，不存在或无法解析时为 0
func (c *Collector) counter(ctx context.Context, key string) int64 {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.WarnCtx(ctx, "cache metrics read failed", zap.String("counter", key), zap.Error(err))
		}
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// HitRate 命中率（0-100，保留两位小数），没有任何操作时为 0
func (c *Collector) HitRate(ctx context.Context) float64 {
	return rate(c.counter(ctx, keyHits), c.counter(ctx, keyMisses))
}

// MissRate 未命中率（0-100），没有任何操作时为 0
func (c *Collector) MissRate(ctx context.Context) float64 {
	return rate(c.counter(ctx, keyMisses), c.counter(ctx, keyHits))
}

func rate(part, other int64) float64 {
	total := part + other
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// OverallStats 全局统计
type OverallStats struct {
	Hits            int64          `json:"hits"`
	Misses          int64          `json:"misses"`
	HitRate         float64        `json:"hit_rate"`
	MissRate        float64        `json:"miss_rate"`
	TotalOperations int64          `json:"total_operations"`
	SlowOperations  int64          `json:"slow_operations"`
	MemoryUsage     map[string]any `json:"memory_usage"`
	CacheSize       int64          `json:"cache_size"`
}

// TagStats 单个标签的统计
type TagStats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Operations int64 `json:"operations"`
}

// KeyStats 单个 key 的统计，AvgDuration 单位为毫秒
type KeyStats struct {
	Key         string  `json:"-"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	AvgDuration float64 `json:"avg_duration"`
}

// OverallStats 汇总全局计数与存储报告
func (c *Collector) OverallStats(ctx context.Context) OverallStats {
	hits := c.counter(ctx, keyHits)
	misses := c.counter(ctx, keyMisses)
	return OverallStats{
		Hits:            hits,
		Misses:          misses,
		HitRate:         rate(hits, misses),
		MissRate:        rate(misses, hits),
		TotalOperations: hits + misses,
		SlowOperations:  c.counter(ctx, keySlow),
		MemoryUsage:     c.MemoryUsage(ctx),
		CacheSize:       c.CacheSize(ctx),
	}
}

// TagStats 所有出现过的标签的统计
func (c *Collector) TagStats(ctx context.Context) map[string]TagStats {
	result := make(map[string]TagStats)
	keys, err := c.store.ScanKeysByPrefix(ctx, tagPrefix)
	if err != nil {
		c.logger.WarnCtx(ctx, "cache metrics scan failed", zap.String("prefix", tagPrefix), zap.Error(err))
		return result
	}

	for _, k := range keys {
		tag, suffix, ok := splitCounterKey(k, tagPrefix, suffixHits, suffixMisses)
		if !ok {
			continue
		}
		st := result[tag]
		n := c.counter(ctx, k)
		if suffix == suffixHits {
			st.Hits = n
		} else {
			st.Misses = n
		}
		st.Operations = st.Hits + st.Misses
		result[tag] = st
	}
	return result
}

// KeyStats 按命中数降序返回前 limit 个 key 的统计，limit <= 0 时返回全部
func (c *Collector) KeyStats(ctx context.Context, limit int) []KeyStats {
	keys, err := c.store.ScanKeysByPrefix(ctx, keyPrefix)
	if err != nil {
		c.logger.WarnCtx(ctx, "cache metrics scan failed", zap.String("prefix", keyPrefix), zap.Error(err))
		return []KeyStats{}
	}

	type acc struct {
		hits, misses, sum, count int64
	}
	byKey := make(map[string]*acc)
	for _, k := range keys {
		name, suffix, ok := splitCounterKey(k, keyPrefix, suffixHits, suffixMisses, suffixDurSum, suffixDurCnt)
		if !ok {
			continue
		}
		a := byKey[name]
		if a == nil {
			a = &acc{}
			byKey[name] = a
		}
		n := c.counter(ctx, k)
		switch suffix {
		case suffixHits:
			a.hits = n
		case suffixMisses:
			a.misses = n
		case suffixDurSum:
			a.sum = n
		case suffixDurCnt:
			a.count = n
		}
	}

	stats := make([]KeyStats, 0, len(byKey))
	for name, a := range byKey {
		st := KeyStats{Key: name, Hits: a.hits, Misses: a.misses}
		if a.count > 0 {
			st.AvgDuration = round2(float64(a.sum) / float64(a.count) / 1000)
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Hits != stats[j].Hits {
			return stats[i].Hits > stats[j].Hits
		}
		return stats[i].Key < stats[j].Key
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// splitCounterKey "tags:user:1:hits" -> ("user:1", ":hits")
func splitCounterKey(k, prefix string, suffixes ...string) (string, string, bool) {
	rest := strings.TrimPrefix(k, prefix)
	for _, s := range suffixes {
		if name, ok := strings.CutSuffix(rest, s); ok && name != "" {
			return name, s, true
		}
	}
	return "", "", false
}

// MemoryUsage 数据存储的内存报告，不支持时为空 map
func (c *Collector) MemoryUsage(ctx context.Context) map[string]any {
	r, ok := c.data.(store.Reporter)
	if !ok {
		return map[string]any{}
	}
	usage, err := r.MemoryUsage(ctx)
	if err != nil {
		c.logger.WarnCtx(ctx, "cache memory usage unavailable", zap.Error(err))
		return map[string]any{}
	}
	if usage == nil {
		usage = map[string]any{}
	}
	return usage
}

// CacheSize 数据存储的 key 数量，不支持时为 0
func (c *Collector) CacheSize(ctx context.Context) int64 {
	r, ok := c.data.(store.Reporter)
	if !ok {
		return 0
	}
	size, err := r.Size(ctx)
	if err != nil {
		c.logger.WarnCtx(ctx, "cache size unavailable", zap.Error(err))
		return 0
	}
	return size
}

// Reset 清空所有计数器
func (c *Collector) Reset(ctx context.Context) error {
	return c.store.Flush(ctx)
}

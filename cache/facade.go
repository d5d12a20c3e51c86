package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/KOMKZ/go-yogan-tagcache/store"
)

// Facade 缓存门面
// 不持有可变的进程内状态，所有共享状态都在 store 中
type Facade struct {
	store      store.Store
	backend    backend
	serializer Serializer
	recorder   Recorder
	logger     logger.CtxLogger
	ttls       *TTLTable
	sf         singleflight.Group

	broadcaster Broadcaster
}

// FacadeOption 配置 Facade
type FacadeOption func(*Facade)

// WithLogger 设置日志
func WithLogger(l logger.CtxLogger) FacadeOption {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) FacadeOption {
	return func(f *Facade) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithSerializer 设置序列化器（默认 JSON）
func WithSerializer(s Serializer) FacadeOption {
	return func(f *Facade) {
		if s != nil {
			f.serializer = s
		}
	}
}

// WithTTLTable 设置数据分类 TTL 表
func WithTTLTable(t *TTLTable) FacadeOption {
	return func(f *Facade) {
		if t != nil {
			f.ttls = t
		}
	}
}

// WithBroadcaster 成功的 FlushTags / Flush 会广播给其他实例
func WithBroadcaster(b Broadcaster) FacadeOption {
	return func(f *Facade) {
		f.broadcaster = b
	}
}

// NewFacade 创建门面，标签能力由 s 是否实现 store.TaggedStore 决定
func NewFacade(s store.Store, opts ...FacadeOption) *Facade {
	f := &Facade{
		store:      s,
		backend:    newBackend(s),
		serializer: NewJSONSerializer(),
		recorder:   nopRecorder{},
		logger:     logger.NewNopLogger(),
		ttls:       NewTTLTable(nil, DefaultTTL),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Store 返回底层存储
func (f *Facade) Store() store.Store {
	return f.store
}

// SupportsTags 底层存储是否支持按标签清空
func (f *Facade) SupportsTags() bool {
	return f.backend.supportsTags()
}

// TTL 返回数据分类的 TTL，未知分类返回默认值
func (f *Facade) TTL(class string) time.Duration {
	return f.ttls.TTL(class)
}

// Lookup 读取并反序列化到 dest
// 错误：ErrInvalidKey（空 key）、ErrCacheMiss、ErrStoreGet、ErrDeserialize
// 命中与未命中会记录指标；存储失败只记录耗时
func (f *Facade) Lookup(ctx context.Context, key string, dest any, tags ...string) error {
	if key == "" {
		return ErrInvalidKey
	}

	start := time.Now()
	data, err := f.backend.get(ctx, key, tags)
	elapsed := time.Since(start)
	f.recorder.RecordSlowOperation(ctx, key, tags, elapsed)

	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		f.recorder.RecordMiss(ctx, key, tags, elapsed)
		return ErrCacheMiss
	default:
		return ErrStoreGet.Wrap(err)
	}

	if err := f.serializer.Deserialize(data, dest); err != nil {
		f.recorder.RecordMiss(ctx, key, tags, elapsed)
		return ErrDeserialize.Wrap(err)
	}
	f.recorder.RecordHit(ctx, key, tags, elapsed)
	return nil
}

// Get 命中时写入 dest 并返回 true
// 空 key、未命中、存储失败、反序列化失败都返回 false（后两者记录警告），dest 不变
func (f *Facade) Get(ctx context.Context, key string, dest any, tags ...string) bool {
	err := f.Lookup(ctx, key, dest, tags...)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrStoreGet) || errors.Is(err, ErrDeserialize) {
		f.logger.WarnCtx(ctx, "cache get failed",
			zap.String("key", key),
			zap.Strings("tags", tags),
			zap.Error(err))
	}
	return false
}

// GetOr 命中时返回缓存值，否则返回 def
func GetOr[T any](ctx context.Context, f *Facade, key string, def T, tags ...string) T {
	var v T
	if f.Get(ctx, key, &v, tags...) {
		return v
	}
	return def
}

// Put 写入缓存，ttl <= 0 时使用默认 TTL
// 空 key 不写入，返回 false；序列化或存储失败记录警告并返回 false
func (f *Facade) Put(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) bool {
	if key == "" {
		return false
	}
	if ttl <= 0 {
		ttl = f.ttls.Default()
	}

	data, err := f.serializer.Serialize(value)
	if err != nil {
		f.logger.WarnCtx(ctx, "cache put failed",
			zap.String("key", key),
			zap.Error(ErrSerialize.Wrap(err)))
		return false
	}

	if err := f.backend.set(ctx, key, data, ttl, tags); err != nil {
		f.logger.WarnCtx(ctx, "cache put failed",
			zap.String("key", key),
			zap.Strings("tags", tags),
			zap.Error(ErrStoreSet.Wrap(err)))
		return false
	}
	return true
}

// Remember cache-aside 读取
//
//   - 命中：直接返回，不调用 producer
//   - 未命中：同一 key 的并发请求合并为一次 producer 调用，结果以 ttl/tags 写入
//   - 存储读取失败：直接调用 producer 并返回结果，不写缓存
//   - 空 key：直接调用 producer
//
// producer 的错误原样返回，调用方 ctx 取消时返回 ctx.Err()
func Remember[T any](ctx context.Context, f *Facade, key string, ttl time.Duration, producer func(ctx context.Context) (T, error), tags ...string) (T, error) {
	var cached T
	err := f.Lookup(ctx, key, &cached, tags...)
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, ErrInvalidKey):
		return producer(ctx)
	case errors.Is(err, ErrStoreGet):
		f.logger.WarnCtx(ctx, "cache unavailable, calling producer directly",
			zap.String("key", key),
			zap.Error(err))
		return producer(ctx)
	}

	// producer 不继承调用方的取消，单个调用方取消不影响其他等待者
	ch := f.sf.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		// double-check：等待期间可能已被其他请求写入
		var again T
		if data, err := f.backend.get(flightCtx, key, tags); err == nil {
			if f.serializer.Deserialize(data, &again) == nil {
				return again, nil
			}
		}

		val, err := producer(flightCtx)
		if err != nil {
			return nil, err
		}
		f.Put(flightCtx, key, val, ttl, tags...)
		return val, nil
	})

	var v any
	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		v = res.Val
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	result, _ := v.(T)
	return result, nil
}

// Forget 删除缓存，空 key 或存储失败返回 false
func (f *Facade) Forget(ctx context.Context, key string, tags ...string) bool {
	if key == "" {
		return false
	}
	if err := f.backend.delete(ctx, key, tags); err != nil {
		f.logger.WarnCtx(ctx, "cache forget failed",
			zap.String("key", key),
			zap.Error(ErrStoreDelete.Wrap(err)))
		return false
	}
	return true
}

// Has 是否存在，空 key 或存储失败返回 false
func (f *Facade) Has(ctx context.Context, key string, tags ...string) bool {
	if key == "" {
		return false
	}
	ok, err := f.backend.exists(ctx, key, tags)
	if err != nil {
		f.logger.WarnCtx(ctx, "cache has failed",
			zap.String("key", key),
			zap.Error(ErrStoreGet.Wrap(err)))
		return false
	}
	return ok
}

// FlushTags 删除带有任一标签的缓存
// 存储不支持标签时清空整个缓存并记录警告；没有有效标签时不做任何事，返回 false
func (f *Facade) FlushTags(ctx context.Context, tags ...string) bool {
	tags = compactTags(tags)
	if len(tags) == 0 {
		return false
	}
	if !f.flushTags(ctx, tags) {
		return false
	}
	f.broadcast(ctx, tags)
	return true
}

// Flush 清空整个缓存
func (f *Facade) Flush(ctx context.Context) bool {
	if !f.flush(ctx) {
		return false
	}
	f.broadcast(ctx, nil)
	return true
}

// ApplyInvalidation 应用其他实例广播的失效，不再转发
// tags 为空表示整体清空
func (f *Facade) ApplyInvalidation(ctx context.Context, tags []string) error {
	tags = compactTags(tags)
	if len(tags) == 0 {
		if !f.flush(ctx) {
			return ErrFlush
		}
		return nil
	}
	if !f.flushTags(ctx, tags) {
		return ErrFlush.WithData("tags", tags)
	}
	return nil
}

func (f *Facade) flushTags(ctx context.Context, tags []string) bool {
	degraded, err := f.backend.flushTags(ctx, tags)
	if degraded {
		f.logger.WarnCtx(ctx, "tag flush degraded to full flush",
			zap.Strings("tags", tags),
			zap.String("store", f.store.Name()))
	}
	if err != nil {
		f.logger.WarnCtx(ctx, "cache flush tags failed",
			zap.Strings("tags", tags),
			zap.Error(ErrFlush.Wrap(err)))
		return false
	}
	return true
}

func (f *Facade) flush(ctx context.Context) bool {
	if err := f.backend.flush(ctx); err != nil {
		f.logger.WarnCtx(ctx, "cache flush failed", zap.Error(ErrFlush.Wrap(err)))
		return false
	}
	return true
}

// broadcast 失败只记录日志，本地失效已经生效
func (f *Facade) broadcast(ctx context.Context, tags []string) {
	if f.broadcaster == nil {
		return
	}
	if err := f.broadcaster.PublishInvalidation(ctx, tags); err != nil {
		f.logger.WarnCtx(ctx, "cache invalidation broadcast failed",
			zap.Strings("tags", tags),
			zap.Error(err))
	}
}

func compactTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

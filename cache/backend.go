package cache

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-tagcache/store"
)

// backend 标签能力在 NewFacade 时确定一次
type backend interface {
	get(ctx context.Context, key string, tags []string) ([]byte, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	delete(ctx context.Context, key string, tags []string) error
	exists(ctx context.Context, key string, tags []string) (bool, error)

	// flushTags 返回 degraded=true 表示执行的是全量清空
	flushTags(ctx context.Context, tags []string) (degraded bool, err error)
	flush(ctx context.Context) error
	supportsTags() bool
}

func newBackend(s store.Store) backend {
	if ts, ok := s.(store.TaggedStore); ok {
		return &taggedBackend{store: ts}
	}
	return &flatBackend{store: s}
}

// taggedBackend 写入时维护标签索引，按标签精确清空
type taggedBackend struct {
	store store.TaggedStore
}

func (b *taggedBackend) get(ctx context.Context, key string, tags []string) ([]byte, error) {
	if len(tags) == 0 {
		return b.store.Get(ctx, key)
	}
	return b.store.Tagged(tags...).Get(ctx, key)
}

func (b *taggedBackend) set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if len(tags) == 0 {
		return b.store.Set(ctx, key, value, ttl)
	}
	return b.store.Tagged(tags...).Set(ctx, key, value, ttl)
}

func (b *taggedBackend) delete(ctx context.Context, key string, tags []string) error {
	if len(tags) == 0 {
		return b.store.Delete(ctx, key)
	}
	return b.store.Tagged(tags...).Delete(ctx, key)
}

func (b *taggedBackend) exists(ctx context.Context, key string, tags []string) (bool, error) {
	if len(tags) == 0 {
		return b.store.Exists(ctx, key)
	}
	return b.store.Tagged(tags...).Exists(ctx, key)
}

func (b *taggedBackend) flushTags(ctx context.Context, tags []string) (bool, error) {
	return false, b.store.Tagged(tags...).Flush(ctx)
}

func (b *taggedBackend) flush(ctx context.Context) error {
	return b.store.Flush(ctx)
}

func (b *taggedBackend) supportsTags() bool {
	return true
}

// flatBackend 忽略标签；按标签清空退化为全量清空
type flatBackend struct {
	store store.Store
}

func (b *flatBackend) get(ctx context.Context, key string, _ []string) ([]byte, error) {
	return b.store.Get(ctx, key)
}

func (b *flatBackend) set(ctx context.Context, key string, value []byte, ttl time.Duration, _ []string) error {
	return b.store.Set(ctx, key, value, ttl)
}

func (b *flatBackend) delete(ctx context.Context, key string, _ []string) error {
	return b.store.Delete(ctx, key)
}

func (b *flatBackend) exists(ctx context.Context, key string, _ []string) (bool, error) {
	return b.store.Exists(ctx, key)
}

func (b *flatBackend) flushTags(ctx context.Context, _ []string) (bool, error) {
	return true, b.store.Flush(ctx)
}

func (b *flatBackend) flush(ctx context.Context) error {
	return b.store.Flush(ctx)
}

func (b *flatBackend) supportsTags() bool {
	return false
}

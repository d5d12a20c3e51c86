package store

import (
	"context"
	"errors"
	"time"
)

// Guard 包裹一次后端调用，*breaker.Breaker 满足此接口
type Guard interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// GuardedStore 每次访问后端都经过 Guard
// ErrNotFound 属于正常结果，不计为失败；Close 与统计接口不经过 Guard
type GuardedStore struct {
	inner Store
	guard Guard
}

// guardedTaggedStore 保留内层的标签能力
type guardedTaggedStore struct {
	*GuardedStore
	tagged TaggedStore
}

var (
	_ Store       = (*GuardedStore)(nil)
	_ Reporter    = (*GuardedStore)(nil)
	_ TaggedStore = (*guardedTaggedStore)(nil)
)

// NewGuardedStore 包装 inner；inner 实现 TaggedStore 时返回值同样实现
func NewGuardedStore(inner Store, g Guard) Store {
	gs := &GuardedStore{inner: inner, guard: g}
	if ts, ok := inner.(TaggedStore); ok {
		return &guardedTaggedStore{GuardedStore: gs, tagged: ts}
	}
	return gs
}

// Unwrap 返回被包装的存储
func (s *GuardedStore) Unwrap() Store {
	return s.inner
}

func (s *GuardedStore) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var miss error
	err := s.guard.Execute(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrNotFound) {
			miss = err
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	return miss
}

// Name 与内层相同
func (s *GuardedStore) Name() string {
	return s.inner.Name()
}

func (s *GuardedStore) Get(ctx context.Context, key string) (val []byte, err error) {
	err = s.do(ctx, func(ctx context.Context) error {
		val, err = s.inner.Get(ctx, key)
		return err
	})
	return val, err
}

func (s *GuardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.Set(ctx, key, value, ttl)
	})
}

func (s *GuardedStore) Delete(ctx context.Context, key string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *GuardedStore) Exists(ctx context.Context, key string) (ok bool, err error) {
	err = s.do(ctx, func(ctx context.Context) error {
		ok, err = s.inner.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (s *GuardedStore) ScanKeysByPrefix(ctx context.Context, prefix string) (keys []string, err error) {
	err = s.do(ctx, func(ctx context.Context) error {
		keys, err = s.inner.ScanKeysByPrefix(ctx, prefix)
		return err
	})
	return keys, err
}

func (s *GuardedStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *GuardedStore) IncrBy(ctx context.Context, key string, delta int64) (n int64, err error) {
	err = s.do(ctx, func(ctx context.Context) error {
		n, err = s.inner.IncrBy(ctx, key, delta)
		return err
	})
	return n, err
}

func (s *GuardedStore) Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error) {
	err = s.do(ctx, func(ctx context.Context) error {
		ok, err = s.inner.Expire(ctx, key, ttl)
		return err
	})
	return ok, err
}

func (s *GuardedStore) Flush(ctx context.Context) error {
	return s.do(ctx, s.inner.Flush)
}

// Close 关闭内层存储
func (s *GuardedStore) Close() error {
	return s.inner.Close()
}

// MemoryUsage 内层不支持时返回空 map
func (s *GuardedStore) MemoryUsage(ctx context.Context) (map[string]any, error) {
	if r, ok := s.inner.(Reporter); ok {
		return r.MemoryUsage(ctx)
	}
	return map[string]any{}, nil
}

// Size 内层不支持时返回 0
func (s *GuardedStore) Size(ctx context.Context) (int64, error) {
	if r, ok := s.inner.(Reporter); ok {
		return r.Size(ctx)
	}
	return 0, nil
}

func (s *guardedTaggedStore) Tagged(tags ...string) TagSet {
	return &guardedTagSet{inner: s.tagged.Tagged(tags...), store: s.GuardedStore}
}

type guardedTagSet struct {
	inner TagSet
	store *GuardedStore
}

func (t *guardedTagSet) Tags() []string {
	return t.inner.Tags()
}

func (t *guardedTagSet) Get(ctx context.Context, key string) (val []byte, err error) {
	err = t.store.do(ctx, func(ctx context.Context) error {
		val, err = t.inner.Get(ctx, key)
		return err
	})
	return val, err
}

func (t *guardedTagSet) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.store.do(ctx, func(ctx context.Context) error {
		return t.inner.Set(ctx, key, value, ttl)
	})
}

func (t *guardedTagSet) Delete(ctx context.Context, key string) error {
	return t.store.do(ctx, func(ctx context.Context) error {
		return t.inner.Delete(ctx, key)
	})
}

func (t *guardedTagSet) Exists(ctx context.Context, key string) (ok bool, err error) {
	err = t.store.do(ctx, func(ctx context.Context) error {
		ok, err = t.inner.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (t *guardedTagSet) Flush(ctx context.Context) error {
	return t.store.do(ctx, t.inner.Flush)
}

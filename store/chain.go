package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChainStore 链式存储（多级缓存，无标签能力）
// 读从前往后，命中后回填前面的层；写和删除作用于所有层
// 计数器、扫描和统计以最后一层为准
type ChainStore struct {
	name        string
	stores      []Store
	backfillTTL time.Duration
}

var (
	_ Store     = (*ChainStore)(nil)
	_ Reporter  = (*ChainStore)(nil)
	_ TTLReader = (*ChainStore)(nil)
)

// NewChainStore 创建链式存储，至少需要一层
func NewChainStore(name string, stores ...Store) (*ChainStore, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("chain store %s: at least one layer is required", name)
	}
	return &ChainStore{
		name:        name,
		stores:      stores,
		backfillTTL: time.Minute,
	}, nil
}

// WithBackfillTTL 回填上层时使用的 TTL
func (s *ChainStore) WithBackfillTTL(ttl time.Duration) *ChainStore {
	s.backfillTTL = ttl
	return s
}

// Name 返回存储名称
func (s *ChainStore) Name() string {
	return s.name
}

func (s *ChainStore) last() Store {
	return s.stores[len(s.stores)-1]
}

// Get 从前往后查询，命中后回填前面的层
// 回填 TTL 不超过命中层的剩余 TTL；命中层无法报告剩余 TTL 时不回填
// 所有层都出错时返回最后一个非 miss 错误
func (s *ChainStore) Get(ctx context.Context, key string) ([]byte, error) {
	var lastErr error
	for i, store := range s.stores {
		val, err := store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				lastErr = err
			}
			continue
		}
		if i > 0 {
			if ttl, ok := s.remainingTTL(ctx, store, key); ok {
				for j := 0; j < i; j++ {
					_ = s.stores[j].Set(ctx, key, val, ttl)
				}
			}
		}
		return val, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// remainingTTL 回填使用的 TTL：min(剩余 TTL, backfillTTL)
func (s *ChainStore) remainingTTL(ctx context.Context, layer Store, key string) (time.Duration, bool) {
	r, ok := layer.(TTLReader)
	if !ok {
		return 0, false
	}
	ttl, err := r.TTL(ctx, key)
	switch {
	case err != nil:
		return 0, false
	case ttl == NoExpiry:
		return s.backfillTTL, true
	case ttl <= 0:
		return 0, false
	}
	return min(ttl, s.backfillTTL), true
}

// Set 设置到所有层
func (s *ChainStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var lastErr error
	for _, store := range s.stores {
		if err := store.Set(ctx, key, value, ttl); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Delete 从所有层删除
func (s *ChainStore) Delete(ctx context.Context, key string) error {
	var lastErr error
	for _, store := range s.stores {
		if err := store.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Exists 任意一层存在即可
func (s *ChainStore) Exists(ctx context.Context, key string) (bool, error) {
	var lastErr error
	for _, store := range s.stores {
		ok, err := store.Exists(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, lastErr
}

// TTL 返回第一个持有该 key 的层的剩余 TTL
func (s *ChainStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var lastErr error
	for _, store := range s.stores {
		r, ok := store.(TTLReader)
		if !ok {
			continue
		}
		ttl, err := r.TTL(ctx, key)
		if err == nil {
			return ttl, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, ErrNotFound
}

// ScanKeysByPrefix 以最后一层为准
func (s *ChainStore) ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.last().ScanKeysByPrefix(ctx, prefix)
}

// Incr 计数器只写最后一层
func (s *ChainStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.last().Incr(ctx, key)
}

// IncrBy 计数器只写最后一层
func (s *ChainStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.last().IncrBy(ctx, key, delta)
}

// Expire 以最后一层的结果为准，前面的层尽力而为
func (s *ChainStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	for _, store := range s.stores[:len(s.stores)-1] {
		_, _ = store.Expire(ctx, key, ttl)
	}
	return s.last().Expire(ctx, key, ttl)
}

// Flush 清空所有层
func (s *ChainStore) Flush(ctx context.Context) error {
	var lastErr error
	for _, store := range s.stores {
		if err := store.Flush(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close 关闭所有层
func (s *ChainStore) Close() error {
	var lastErr error
	for _, store := range s.stores {
		if err := store.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Size 最后一层能报告时使用其结果
func (s *ChainStore) Size(ctx context.Context) (int64, error) {
	if r, ok := s.last().(Reporter); ok {
		return r.Size(ctx)
	}
	return 0, nil
}

// MemoryUsage 最后一层能报告时使用其结果
func (s *ChainStore) MemoryUsage(ctx context.Context) (map[string]any, error) {
	if r, ok := s.last().(Reporter); ok {
		return r.MemoryUsage(ctx)
	}
	return map[string]any{}, nil
}

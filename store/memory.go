package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore 内存存储（无标签能力）
// 过期条目在读取时惰性删除，并由后台协程定期清理
type MemoryStore struct {
	name    string
	data    map[string]*memoryItem
	mu      sync.RWMutex
	maxSize int
	now     func() time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	closeOnce       sync.Once
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ Reporter  = (*MemoryStore)(nil)
	_ TTLReader = (*MemoryStore)(nil)
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero = never
}

func (it *memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// MemoryOption MemoryStore 选项
type MemoryOption func(*MemoryStore)

// WithCleanupInterval 后台清理周期（默认 1 分钟，<= 0 关闭后台清理）
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = d
	}
}

// NewMemoryStore 创建内存存储
// maxSize <= 0 时使用 10000
func NewMemoryStore(name string, maxSize int, opts ...MemoryOption) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	s := &MemoryStore{
		name:            name,
		data:            make(map[string]*memoryItem),
		maxSize:         maxSize,
		now:             time.Now,
		cleanupInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cleanupInterval > 0 {
		s.stop = make(chan struct{})
		go s.cleanupLoop(s.cleanupInterval, s.stop)
	}
	return s
}

// Name 返回存储名称
func (s *MemoryStore) Name() string {
	return s.name
}

// Get 获取缓存值
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	item, ok := s.data[key]
	var value []byte
	expired := false
	if ok {
		value, expired = item.value, item.expired(s.now())
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if expired {
		s.deleteIfExpired(key)
		return nil, ErrNotFound
	}
	return value, nil
}

// Set 设置缓存值，容量满时淘汰最早过期的条目
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && len(s.data) >= s.maxSize {
		s.evictOne()
	}

	s.data[key] = &memoryItem{
		value:     append([]byte(nil), value...),
		expiresAt: s.expiresAt(ttl),
	}
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Exists 检查 Key 是否存在
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.data[key]
	return ok && !item.expired(s.now()), nil
}

// TTL 剩余过期时间
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	item, ok := s.data[key]
	if !ok || item.expired(now) {
		return 0, ErrNotFound
	}
	if item.expiresAt.IsZero() {
		return NoExpiry, nil
	}
	return item.expiresAt.Sub(now), nil
}

// ScanKeysByPrefix 按前缀列出未过期的 key（已排序）
func (s *MemoryStore) ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	keys := make([]string, 0)
	for key, item := range s.data {
		if strings.HasPrefix(key, prefix) && !item.expired(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Incr 原子自增
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

// IncrBy 原子增加 delta，保留原有过期时间
func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data[key]
	if !ok || item.expired(s.now()) {
		if len(s.data) >= s.maxSize {
			s.evictOne()
		}
		item = &memoryItem{}
	}

	var current int64
	if len(item.value) > 0 {
		n, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, ErrCounter.WithMsgf("value of %s is not an integer", key)
		}
		current = n
	}
	current += delta
	// 条目不可变，写入时替换
	s.data[key] = &memoryItem{
		value:     []byte(strconv.FormatInt(current, 10)),
		expiresAt: item.expiresAt,
	}
	return current, nil
}

// Expire 设置过期时间
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data[key]
	if !ok || item.expired(s.now()) {
		return false, nil
	}
	s.data[key] = &memoryItem{value: item.value, expiresAt: s.expiresAt(ttl)}
	return true, nil
}

// Flush 清空所有条目
func (s *MemoryStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*memoryItem)
	return nil
}

// Close 停止后台清理并清空数据（允许重复调用）
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
	})
	return s.Flush(context.Background())
}

// Size 返回未过期条目数
func (s *MemoryStore) Size(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var n int64
	for _, item := range s.data {
		if !item.expired(now) {
			n++
		}
	}
	return n, nil
}

// MemoryUsage 内存存储无法报告内存占用，返回空 map
func (s *MemoryStore) MemoryUsage(ctx context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

func (s *MemoryStore) expiresAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) deleteIfExpired(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.data[key]; ok && item.expired(s.now()) {
		delete(s.data, key)
	}
}

// evictOne 淘汰一个条目：已过期的优先，其次最早过期的，最后任意一个永不过期的
// 调用方持有写锁
func (s *MemoryStore) evictOne() {
	now := s.now()
	var victim string
	var victimAt time.Time
	for key, item := range s.data {
		if item.expired(now) {
			delete(s.data, key)
			return
		}
		switch {
		case victim == "":
			victim, victimAt = key, item.expiresAt
		case victimAt.IsZero() && !item.expiresAt.IsZero():
			victim, victimAt = key, item.expiresAt
		case !item.expiresAt.IsZero() && item.expiresAt.Before(victimAt):
			victim, victimAt = key, item.expiresAt
		}
	}
	if victim != "" {
		delete(s.data, victim)
	}
}

func (s *MemoryStore) cleanupLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-stop:
			return
		}
	}
}

// cleanup 清理过期条目
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, item := range s.data {
		if item.expired(now) {
			delete(s.data, key)
		}
	}
}

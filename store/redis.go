package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// tagNamespace 标签索引集合的 key 段：<prefix>tag:<tag>
	tagNamespace = "tag:"
	scanCount    = 500
)

// RedisStore Redis 存储（支持标签）
//
// 每个标签维护一个 Redis Set 记录其成员 key，集合的过期时间覆盖最长的成员 TTL
// 集群模式下 prefix 建议使用 hash tag（如 "{tasks}:"）
type RedisStore struct {
	name      string
	client    redis.UniversalClient
	keyPrefix string
}

var (
	_ TaggedStore = (*RedisStore)(nil)
	_ Reporter    = (*RedisStore)(nil)
	_ TTLReader   = (*RedisStore)(nil)
	_ TagPruner   = (*RedisStore)(nil)
)

// NewRedisStore 创建 Redis 存储
// client 由外部管理，Close 不会关闭它
func NewRedisStore(name string, client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{
		name:      name,
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Name 返回存储名称
func (s *RedisStore) Name() string {
	return s.name
}

// Client 返回底层 Redis 客户端
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

// Prefix 返回 key 前缀
func (s *RedisStore) Prefix() string {
	return s.keyPrefix
}

func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.keyPrefix + tagNamespace + tag
}

// Get 获取缓存值
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, ErrGet.Wrap(err)
	}
	return result, nil
}

// Set 设置缓存值
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.buildKey(key), value, redisTTL(ttl)).Err(); err != nil {
		return ErrSet.Wrap(err)
	}
	return nil
}

// Delete 删除缓存
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil {
		return ErrDelete.Wrap(err)
	}
	return nil
}

// Exists 检查 Key 是否存在
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.buildKey(key)).Result()
	if err != nil {
		return false, ErrGet.Wrap(err)
	}
	return n > 0, nil
}

// TTL 剩余过期时间（PTTL）
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.buildKey(key)).Result()
	if err != nil {
		return 0, ErrGet.Wrap(err)
	}
	// go-redis 原样返回 -2 / -1
	switch ttl {
	case -2:
		return 0, ErrNotFound
	case -1:
		return NoExpiry, nil
	}
	return ttl, nil
}

// ScanKeysByPrefix 使用 SCAN 列出 key（去掉存储前缀，不含标签索引）
func (s *RedisStore) ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	fullKeys, err := s.scan(ctx, s.buildKey(prefix)+"*")
	if err != nil {
		return nil, ErrScan.Wrap(err)
	}

	keys := make([]string, 0, len(fullKeys))
	for _, k := range fullKeys {
		k = strings.TrimPrefix(k, s.keyPrefix)
		if strings.HasPrefix(k, tagNamespace) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Incr 原子自增
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, s.buildKey(key)).Result()
	if err != nil {
		return 0, ErrCounter.Wrap(err)
	}
	return n, nil
}

// IncrBy 原子增加 delta
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, s.buildKey(key), delta).Result()
	if err != nil {
		return 0, ErrCounter.Wrap(err)
	}
	return n, nil
}

// Expire 设置过期时间，ttl <= 0 时移除过期时间
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var (
		ok  bool
		err error
	)
	if ttl <= 0 {
		ok, err = s.client.Persist(ctx, s.buildKey(key)).Result()
		if err == nil && !ok {
			// PERSIST 对没有过期时间的 key 也返回 0
			var n int64
			n, err = s.client.Exists(ctx, s.buildKey(key)).Result()
			ok = n > 0
		}
	} else {
		ok, err = s.client.PExpire(ctx, s.buildKey(key), ttl).Result()
	}
	if err != nil {
		return false, ErrCounter.Wrap(err)
	}
	return ok, nil
}

// Flush SCAN 删除 <prefix>* 下的所有 key（包括标签索引）
func (s *RedisStore) Flush(ctx context.Context) error {
	keys, err := s.scan(ctx, s.keyPrefix+"*")
	if err != nil {
		return ErrFlush.Wrap(err)
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		return ErrFlush.Wrap(err)
	}
	return nil
}

// Close 关闭存储
// Redis client 由外部管理，这里不关闭
func (s *RedisStore) Close() error {
	return nil
}

// Tagged 返回带标签的视图
func (s *RedisStore) Tagged(tags ...string) TagSet {
	return &redisTagSet{store: s, tags: normalizeTags(tags)}
}

// Size 前缀为空时使用 DBSIZE，否则统计前缀下的 key 数（不含标签索引）
func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	if s.keyPrefix == "" {
		n, err := s.client.DBSize(ctx).Result()
		if err != nil {
			return 0, ErrScan.Wrap(err)
		}
		return n, nil
	}
	keys, err := s.ScanKeysByPrefix(ctx, "")
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// MemoryUsage 解析 INFO memory
// 数值字段转为 int64，其余保留字符串
func (s *RedisStore) MemoryUsage(ctx context.Context) (map[string]any, error) {
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, ErrGet.Wrap(err)
	}
	return parseInfo(info), nil
}

// scan 在单机上 SCAN，在集群上对每个 master 分别 SCAN
func (s *RedisStore) scan(ctx context.Context, match string) ([]string, error) {
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		var (
			mu   sync.Mutex
			keys []string
		)
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			nodeKeys, err := scanNode(ctx, node, match)
			if err != nil {
				return err
			}
			mu.Lock()
			keys = append(keys, nodeKeys...)
			mu.Unlock()
			return nil
		})
		return keys, err
	}
	return scanNode(ctx, s.client, match)
}

func scanNode(ctx context.Context, c redis.Cmdable, match string) ([]string, error) {
	var keys []string
	iter := c.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// deleteKeys 逐个 DEL（pipeline），兼容集群跨 slot
func (s *RedisStore) deleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, k)
		}
		return nil
	})
	return err
}

// redisTTL 将 ttl <= 0 映射为不过期
func redisTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func parseInfo(info string) map[string]any {
	result := make(map[string]any)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			result[k] = n
			continue
		}
		result[k] = v
	}
	return result
}

// normalizeTags 去空、去重，保持顺序
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

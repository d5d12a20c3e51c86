package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTagSet 标签视图
// 读操作与标签无关，直接读取 key；写操作同时维护标签索引
type redisTagSet struct {
	store *RedisStore
	tags  []string
}

func (t *redisTagSet) Tags() []string {
	return append([]string(nil), t.tags...)
}

func (t *redisTagSet) Get(ctx context.Context, key string) ([]byte, error) {
	return t.store.Get(ctx, key)
}

func (t *redisTagSet) Exists(ctx context.Context, key string) (bool, error) {
	return t.store.Exists(ctx, key)
}

// tagAddScript 把成员加入标签集合并按成员 TTL 延长集合的过期时间，单个标签上原子执行
// KEYS[1] 标签集合；ARGV[1] 成员；ARGV[2] 成员 TTL 毫秒（<= 0 表示永不过期）
//   - 成员永不过期：集合 PERSIST
//   - 集合不存在或现有 TTL 更短：PEXPIRE 到成员 TTL
//   - 集合已永不过期：保持不变
var tagAddScript = redis.NewScript(`
local current = redis.call('PTTL', KEYS[1])
redis.call('SADD', KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl <= 0 then
  redis.call('PERSIST', KEYS[1])
elseif current == -2 or (current >= 0 and current < ttl) then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// tagPruneScript 移除已不存在的成员，检查与移除在同一脚本内完成，不会误删刚写入的 key
// KEYS[1] 标签集合；KEYS[2..n] 待检查的成员
var tagPruneScript = redis.NewScript(`
local removed = 0
for i = 2, #KEYS do
  if redis.call('EXISTS', KEYS[i]) == 0 then
    removed = removed + redis.call('SREM', KEYS[1], KEYS[i])
  end
end
return removed
`)

const pruneBatch = 100

// Set 写入值并把 key 加入每个标签集合
// 值与各标签集合在同一个 pipeline 中写入，每个标签集合的更新由 tagAddScript 原子完成
func (t *redisTagSet) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(t.tags) == 0 {
		return t.store.Set(ctx, key, value, ttl)
	}

	err := t.write(ctx, key, value, ttl)
	if err != nil && isNoScript(err) {
		if err = tagAddScript.Load(ctx, t.store.client).Err(); err == nil {
			err = t.write(ctx, key, value, ttl)
		}
	}
	if err != nil {
		return ErrSet.Wrap(err)
	}
	return nil
}

func (t *redisTagSet) write(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := t.store.buildKey(key)
	ttlMillis := int64(0)
	if ttl > 0 {
		ttlMillis = max(ttl.Milliseconds(), 1)
	}
	_, err := t.store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fullKey, value, redisTTL(ttl))
		for _, tag := range t.tags {
			tagAddScript.EvalSha(ctx, pipe, []string{t.store.tagKey(tag)}, fullKey, ttlMillis)
		}
		return nil
	})
	return err
}

func isNoScript(err error) bool {
	return strings.HasPrefix(err.Error(), "NOSCRIPT")
}

// Delete 删除 key 并从标签集合中移除
func (t *redisTagSet) Delete(ctx context.Context, key string) error {
	fullKey := t.store.buildKey(key)
	_, err := t.store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fullKey)
		for _, tag := range t.tags {
			pipe.SRem(ctx, t.store.tagKey(tag), fullKey)
		}
		return nil
	})
	if err != nil {
		return ErrDelete.Wrap(err)
	}
	return nil
}

// Flush 删除任一标签下的所有成员以及标签集合本身
func (t *redisTagSet) Flush(ctx context.Context) error {
	if len(t.tags) == 0 {
		return nil
	}

	client := t.store.client
	memberCmds := make([]*redis.StringSliceCmd, len(t.tags))
	_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, tag := range t.tags {
			memberCmds[i] = pipe.SMembers(ctx, t.store.tagKey(tag))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return ErrFlush.Wrap(err)
	}

	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, cmd := range memberCmds {
		for _, member := range cmd.Val() {
			if _, ok := seen[member]; ok {
				continue
			}
			seen[member] = struct{}{}
			keys = append(keys, member)
		}
	}
	for _, tag := range t.tags {
		keys = append(keys, t.store.tagKey(tag))
	}

	if err := t.store.deleteKeys(ctx, keys); err != nil {
		return ErrFlush.Wrap(err)
	}
	return nil
}

// PruneTags 清理所有标签集合中已过期的成员，返回移除的成员数
// 集合按最长成员 TTL 续期，频繁写入的标签需要定期清理
// 集群模式下要求 key 前缀使用 hash tag，否则脚本跨 slot 会失败
func (s *RedisStore) PruneTags(ctx context.Context) (int64, error) {
	tagKeys, err := s.scan(ctx, s.keyPrefix+tagNamespace+"*")
	if err != nil {
		return 0, ErrScan.Wrap(err)
	}

	var removed int64
	for _, tagKey := range tagKeys {
		n, err := s.pruneTag(ctx, tagKey)
		removed += n
		if err != nil {
			return removed, ErrScan.Wrap(err)
		}
	}
	return removed, nil
}

func (s *RedisStore) pruneTag(ctx context.Context, tagKey string) (int64, error) {
	var removed int64
	batch := make([]string, 0, pruneBatch+1)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		keys := append([]string{tagKey}, batch...)
		n, err := tagPruneScript.Run(ctx, s.client, keys).Int64()
		if err != nil {
			return err
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	iter := s.client.SScan(ctx, tagKey, 0, "", scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == pruneBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, flush()
}

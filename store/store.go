// Package store defines the key-value backends the tag cache runs on
// Backends: MemoryStore (flat), RedisStore (tag-capable), ChainStore (flat, multi-level)
package store

import (
	"context"
	"time"
)

// Store key-value backend with TTL support
// A ttl <= 0 means no expiry
type Store interface {
	// Name Returns the backend name
	Name() string

	// Get returns ErrNotFound on a miss
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete is a no-op for missing keys
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// ScanKeysByPrefix returns the live keys starting with prefix
	ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error)

	// Incr / IncrBy are atomic; a missing key starts at 0 with no expiry
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Expire returns false when the key does not exist
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Flush removes every key owned by this store
	Flush(ctx context.Context) error

	Close() error
}

// TaggedStore a Store that keeps its own tag -> keys index
type TaggedStore interface {
	Store

	// Tagged returns a view whose writes are indexed under tags
	Tagged(tags ...string) TagSet
}

// TagSet tag scoped operations
type TagSet interface {
	Tags() []string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Flush removes every entry indexed under any of the tags
	Flush(ctx context.Context) error
}

// Reporter optional introspection
// Backends that cannot report return an empty map / zero
type Reporter interface {
	MemoryUsage(ctx context.Context) (map[string]any, error)
	Size(ctx context.Context) (int64, error)
}

// NoExpiry TTLReader.TTL 对永不过期的 key 返回的值
const NoExpiry = time.Duration(-1)

// TTLReader optional remaining-TTL lookup
// TTL returns ErrNotFound for a missing key and NoExpiry for a key without expiry
type TTLReader interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// TagPruner optional maintenance for tag indexes whose members expire on their own
type TagPruner interface {
	PruneTags(ctx context.Context) (int64, error)
}

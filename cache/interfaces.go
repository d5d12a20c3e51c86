// Package cache provides the tag-aware cache facade
//
// Every Facade method is fail-open: store failures are logged and turned into
// the documented fallback value, so the cache never breaks the feature it
// accelerates. Producer errors in Remember are the one thing that propagates.
package cache

import (
	"context"
	"time"
)

// Recorder receives per-read outcomes from the facade
// Implemented by *cachemetrics.Collector
type Recorder interface {
	RecordHit(ctx context.Context, key string, tags []string, d time.Duration)
	RecordMiss(ctx context.Context, key string, tags []string, d time.Duration)

	// RecordSlowOperation reports whether d was above the slow threshold
	RecordSlowOperation(ctx context.Context, key string, tags []string, d time.Duration) bool
}

// TagInvalidator 事件实现此接口后，Invalidator 会额外刷新它给出的标签
// 例如 TaskChanged{UserID: 7} 返回 TaskTags(7)
type TagInvalidator interface {
	InvalidationTags() []string
}

// Broadcaster 把本实例成功的失效广播给其他实例
// tags 为空表示整体清空；实现方需自行过滤本实例发出的消息
type Broadcaster interface {
	PublishInvalidation(ctx context.Context, tags []string) error
}

type nopRecorder struct{}

func (nopRecorder) RecordHit(context.Context, string, []string, time.Duration)  {}
func (nopRecorder) RecordMiss(context.Context, string, []string, time.Duration) {}
func (nopRecorder) RecordSlowOperation(context.Context, string, []string, time.Duration) bool {
	return false
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-tagcache/event"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

func TestInvalidator_TaskChangedFlushesUserTags(t *testing.T) {
	f, _ := newTaggedFacade(t)
	ctx := context.Background()
	d := event.NewDispatcher(event.WithSetAllSync(true))
	defer d.Close()

	unsubscribe := NewInvalidator(f, []InvalidationRule{{Event: EventTaskChanged}}, nil).Subscribe(d)

	require.True(t, f.Put(ctx, "v1:tasks:user:7", "list", time.Minute, TaskTags(7)...))
	require.True(t, f.Put(ctx, "v1:analytics:user:7", "stats", time.Minute, AnalyticsTags(7)...))
	require.True(t, f.Put(ctx, "v1:analytics:user:8", "stats", time.Minute, AnalyticsTags(8)...))

	require.NoError(t, d.Dispatch(ctx, NewTaskChangedEvent(7)))
	assert.False(t, f.Has(ctx, "v1:tasks:user:7"))
	assert.False(t, f.Has(ctx, "v1:analytics:user:7"), "user:7 reaches entries written by other features")
	assert.True(t, f.Has(ctx, "v1:analytics:user:8"))

	unsubscribe()
	require.True(t, f.Put(ctx, "v1:tasks:user:7", "list", time.Minute, TaskTags(7)...))
	require.NoError(t, d.Dispatch(ctx, NewTaskChangedEvent(7)))
	assert.True(t, f.Has(ctx, "v1:tasks:user:7"), "unsubscribed")
}

func TestInvalidator_RuleTags(t *testing.T) {
	f, _ := newTaggedFacade(t)
	ctx := context.Background()
	d := event.NewDispatcher(event.WithSetAllSync(true))
	defer d.Close()

	NewInvalidator(f, []InvalidationRule{{Event: "category.changed", Tags: []string{TagStatic}}}, nil).Subscribe(d)

	require.True(t, f.Put(ctx, "v1:static:categories", "c", time.Minute, StaticTags()...))
	require.True(t, f.Put(ctx, "v1:tasks:user:1", "t", time.Minute, TaskTags(1)...))

	require.NoError(t, d.Dispatch(ctx, event.NewEvent("category.changed")))
	assert.False(t, f.Has(ctx, "v1:static:categories"))
	assert.True(t, f.Has(ctx, "v1:tasks:user:1"))
}

func TestInvalidator_CombinesRuleAndEventTags(t *testing.T) {
	f, _ := newTaggedFacade(t)
	ctx := context.Background()
	d := event.NewDispatcher(event.WithSetAllSync(true))
	defer d.Close()

	NewInvalidator(f, []InvalidationRule{{Event: "report.ready", Tags: []string{TagAnalytics}}}, nil).Subscribe(d)

	require.True(t, f.Put(ctx, "a", "1", time.Minute, TagAnalytics))
	require.True(t, f.Put(ctx, "b", "2", time.Minute, "api:dashboard"))
	require.True(t, f.Put(ctx, "c", "3", time.Minute, TagStatic))

	require.NoError(t, d.Dispatch(ctx, NewTagsEvent("report.ready", "api:dashboard")))
	assert.False(t, f.Has(ctx, "a"))
	assert.False(t, f.Has(ctx, "b"))
	assert.True(t, f.Has(ctx, "c"))
}

func TestInvalidator_EventWithoutTags(t *testing.T) {
	tl := logger.NewTestCtxLogger()
	f := newFlatFacade(t)
	ctx := context.Background()
	require.True(t, f.Put(ctx, "k", "v", time.Minute))

	handler := NewInvalidator(f, nil, tl).Handler(InvalidationRule{Event: "user.login"})
	require.NoError(t, handler.Handle(ctx, event.NewEvent("user.login")))

	assert.True(t, f.Has(ctx, "k"), "nothing flushed")
	assert.True(t, tl.HasLogWithField("WARN", "event carries no invalidation tags", "event", "user.login"))
}

func TestInvalidator_FlatStoreDegrades(t *testing.T) {
	tl := logger.NewTestCtxLogger()
	f := newFlatFacade(t, WithLogger(tl))
	ctx := context.Background()
	require.True(t, f.Put(ctx, "v1:static", "s", time.Minute, StaticTags()...))

	handler := NewInvalidator(f, nil, tl).Handler(InvalidationRule{Event: EventTaskChanged})
	require.NoError(t, handler.Handle(ctx, NewTaskChangedEvent(1)))

	assert.False(t, f.Has(ctx, "v1:static"))
	assert.True(t, tl.HasLog("WARN", "tag flush degraded to full flush"))
	assert.True(t, tl.HasLog("INFO", "cache invalidated by event"))
}

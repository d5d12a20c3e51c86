package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/KOMKZ/go-yogan-tagcache/store"
)

type task struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func newFlatFacade(t *testing.T, opts ...FacadeOption) *Facade {
	t.Helper()
	s := store.NewMemoryStore("memory", 0, store.WithCleanupInterval(0))
	t.Cleanup(func() { _ = s.Close() })
	return NewFacade(s, opts...)
}

func newTaggedFacade(t *testing.T, opts ...FacadeOption) (*Facade, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFacade(store.NewRedisStore("redis", client, "tasks:"), opts...), mr
}

func TestFacade_PutGet(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()
	want := task{ID: 1, Title: "write report", Status: "todo"}

	require.True(t, f.Put(ctx, "v1:tasks:1", want, time.Minute))
	require.True(t, f.Put(ctx, "v1:tasks:1", want, time.Minute), "idempotent")

	var got task
	require.True(t, f.Get(ctx, "v1:tasks:1", &got))
	assert.Equal(t, want, got)

	assert.Equal(t, want, GetOr(ctx, f, "v1:tasks:1", task{}))
	assert.Equal(t, task{ID: -1}, GetOr(ctx, f, "v1:tasks:missing", task{ID: -1}))
}

func TestFacade_EmptyKey(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()

	assert.False(t, f.Put(ctx, "", "v", time.Minute))
	assert.False(t, f.Has(ctx, ""))
	assert.False(t, f.Forget(ctx, ""))
	assert.Equal(t, "default", GetOr(ctx, f, "", "default"))
	assert.ErrorIs(t, f.Lookup(ctx, "", new(string)), ErrInvalidKey)

	keys, err := f.Store().ScanKeysByPrefix(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys, "empty key never written")
}

func TestFacade_Lookup(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()

	var got int
	assert.ErrorIs(t, f.Lookup(ctx, "k", &got), ErrCacheMiss)

	require.True(t, f.Put(ctx, "k", "not a number", time.Minute))
	assert.ErrorIs(t, f.Lookup(ctx, "k", &got), ErrDeserialize)

	require.True(t, f.Put(ctx, "k", 42, time.Minute))
	require.NoError(t, f.Lookup(ctx, "k", &got))
	assert.Equal(t, 42, got)
}

func TestFacade_TTLBoundary(t *testing.T) {
	f, mr := newTaggedFacade(t)
	ctx := context.Background()

	require.True(t, f.Put(ctx, "k", "v", time.Second))
	assert.True(t, f.Has(ctx, "k"))

	mr.FastForward(2 * time.Second)
	assert.False(t, f.Has(ctx, "k"))
	assert.False(t, f.Get(ctx, "k", new(string)))
}

func TestFacade_DefaultTTL(t *testing.T) {
	f, mr := newTaggedFacade(t)
	ctx := context.Background()

	require.True(t, f.Put(ctx, "k", "v", 0))
	assert.Equal(t, DefaultTTL, mr.TTL("tasks:k"))

	f2, mr2 := newTaggedFacade(t, WithTTLTable(NewTTLTable(nil, time.Minute)))
	require.True(t, f2.Put(ctx, "k", "v", -1))
	assert.Equal(t, time.Minute, mr2.TTL("tasks:k"))
}

func TestFacade_TTLTable(t *testing.T) {
	f := newFlatFacade(t)

	tests := []struct {
		class string
		want  time.Duration
	}{
		{ClassAnalytics, 300 * time.Second},
		{ClassLists, 180 * time.Second},
		{ClassUser, 900 * time.Second},
		{ClassStatic, 3600 * time.Second},
		{ClassAPI, 600 * time.Second},
		{"unknown", 180 * time.Second},
		{"", 180 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			assert.Equal(t, tt.want, f.TTL(tt.class))
		})
	}

	custom := NewTTLTable(map[string]time.Duration{ClassUser: time.Minute, ClassAPI: 0}, 30*time.Second)
	assert.Equal(t, time.Minute, custom.TTL(ClassUser))
	assert.Equal(t, 600*time.Second, custom.TTL(ClassAPI), "non-positive overrides are ignored")
	assert.Equal(t, 30*time.Second, custom.TTL("unknown"))
}

func TestFacade_TagIsolation(t *testing.T) {
	f, _ := newTaggedFacade(t)
	ctx := context.Background()
	require.True(t, f.SupportsTags())

	require.True(t, f.Put(ctx, "k1", "one", time.Minute, "A"))
	require.True(t, f.Put(ctx, "k2", "two", time.Minute, "B"))

	require.True(t, f.FlushTags(ctx, "A"))
	assert.False(t, f.Has(ctx, "k1"))
	assert.True(t, f.Has(ctx, "k2"))
}

func TestFacade_FlushTagsIsLogicalOr(t *testing.T) {
	f, _ := newTaggedFacade(t)
	ctx := context.Background()

	require.True(t, f.Put(ctx, "tasks", "1", time.Minute, TaskTags(7)...))
	require.True(t, f.Put(ctx, "stats", "2", time.Minute, AnalyticsTags(7)...))
	require.True(t, f.Put(ctx, "other", "3", time.Minute, TaskTags(8)...))
	require.True(t, f.Put(ctx, "static", "4", time.Minute, StaticTags()...))

	require.True(t, f.FlushTags(ctx, UserTag(7)))
	assert.False(t, f.Has(ctx, "tasks"))
	assert.False(t, f.Has(ctx, "stats"))
	assert.True(t, f.Has(ctx, "other"))

	require.True(t, f.FlushTags(ctx, TagTasks, TagStatic))
	assert.False(t, f.Has(ctx, "other"))
	assert.False(t, f.Has(ctx, "static"))
}

func TestFacade_FlushTagsDegradesOnFlatStore(t *testing.T) {
	tl := logger.NewTestCtxLogger()
	f := newFlatFacade(t, WithLogger(tl))
	ctx := context.Background()
	require.False(t, f.SupportsTags())

	require.True(t, f.Put(ctx, "k1", "one", time.Minute, "A"))
	require.True(t, f.Put(ctx, "k2", "two", time.Minute, "B"))
	require.True(t, f.Put(ctx, "k3", "three", time.Minute))

	var got string
	require.True(t, f.Get(ctx, "k1", &got, "A"), "tags are ignored on reads")

	require.True(t, f.FlushTags(ctx, "A"))
	assert.False(t, f.Has(ctx, "k1"))
	assert.False(t, f.Has(ctx, "k2"), "never tagged A, still cleared")
	assert.False(t, f.Has(ctx, "k3"))
	assert.True(t, tl.HasLogWithField("WARN", "tag flush degraded to full flush", "store", "memory"))
}

func TestFacade_FlushTagsWithoutTags(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()
	require.True(t, f.Put(ctx, "k", "v", time.Minute))

	assert.False(t, f.FlushTags(ctx))
	assert.False(t, f.FlushTags(ctx, "", ""))
	assert.True(t, f.Has(ctx, "k"))
}

func TestFacade_ForgetAndFlush(t *testing.T) {
	f, mr := newTaggedFacade(t)
	ctx := context.Background()

	require.True(t, f.Put(ctx, "k1", "one", time.Minute, "A"))
	require.True(t, f.Put(ctx, "k2", "two", time.Minute))

	require.True(t, f.Forget(ctx, "k1", "A"))
	assert.False(t, f.Has(ctx, "k1"))
	members, _ := mr.Members("tasks:tag:A")
	assert.Empty(t, members)

	require.True(t, f.Flush(ctx))
	assert.False(t, f.Has(ctx, "k2"))
}

func TestFacade_FailOpen(t *testing.T) {
	tl := logger.NewTestCtxLogger()
	f, mr := newTaggedFacade(t, WithLogger(tl))
	ctx := context.Background()
	require.True(t, f.Put(ctx, "k", "cached", time.Minute))

	mr.SetError("ERR injected failure")

	assert.Equal(t, "fallback", GetOr(ctx, f, "k", "fallback"))
	assert.ErrorIs(t, f.Lookup(ctx, "k", new(string)), ErrStoreGet)
	assert.False(t, f.Put(ctx, "k", "v", time.Minute))
	assert.False(t, f.Has(ctx, "k"))
	assert.False(t, f.Forget(ctx, "k"))
	assert.False(t, f.FlushTags(ctx, "A"))
	assert.False(t, f.Flush(ctx))

	assert.True(t, tl.HasLog("WARN", "cache get failed"))
	assert.True(t, tl.HasLog("WARN", "cache put failed"))
	assert.True(t, tl.HasLog("WARN", "cache flush failed"))
}

func TestFacade_PutSerializeFailure(t *testing.T) {
	tl := logger.NewTestCtxLogger()
	f := newFlatFacade(t, WithLogger(tl))

	assert.False(t, f.Put(context.Background(), "k", make(chan int), time.Minute))
	assert.True(t, tl.HasLog("WARN", "cache put failed"))
}

func TestRemember_CallsProducerOnce(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()

	var calls int32
	producer := func(ctx context.Context) ([]task, error) {
		atomic.AddInt32(&calls, 1)
		return []task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}, nil
	}

	first, err := Remember(ctx, f, "v1:tasks:user:1", time.Minute, producer, TaskTags(1)...)
	require.NoError(t, err)
	second, err := Remember(ctx, f, "v1:tasks:user:1", time.Minute, producer, TaskTags(1)...)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemember_CoalescesConcurrentMisses(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	producer := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 99, nil
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Remember(ctx, f, "hot", time.Minute, producer)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 99, v)
	}
}

func TestRemember_FirstCallerCancelDoesNotFailWaiters(t *testing.T) {
	f := newFlatFacade(t)

	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	producer := func(ctx context.Context) (string, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "fresh", nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Remember(firstCtx, f, "hot", time.Minute, producer)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		v, err := Remember(context.Background(), f, "hot", time.Minute, producer)
		waiter <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-waiter
	require.NoError(t, res.err)
	assert.Equal(t, "fresh", res.v)
	assert.True(t, f.Has(context.Background(), "hot"))
}

func TestRemember_ProducerErrorPropagates(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()
	boom := errors.New("database unavailable")

	_, err := Remember(ctx, f, "k", time.Minute, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.Has(ctx, "k"), "failed result is not cached")
}

func TestRemember_StoreFailureCallsProducerUncached(t *testing.T) {
	f, mr := newTaggedFacade(t)
	ctx := context.Background()
	mr.SetError("ERR injected failure")

	var calls int32
	producer := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "fresh", nil
	}

	for i := 0; i < 2; i++ {
		v, err := Remember(ctx, f, "k", time.Minute, producer)
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	mr.SetError("")
	assert.False(t, mr.Exists("tasks:k"))
}

func TestRemember_EmptyKeyCallsProducer(t *testing.T) {
	f := newFlatFacade(t)
	v, err := Remember(context.Background(), f, "", time.Minute, func(ctx context.Context) (int, error) {
		return 5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestRemember_CorruptEntryIsRecomputed(t *testing.T) {
	f := newFlatFacade(t)
	ctx := context.Background()
	require.NoError(t, f.Store().Set(ctx, "k", []byte("{broken"), time.Minute))

	v, err := Remember(ctx, f, "k", time.Minute, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 7, GetOr(ctx, f, "k", 0))
}

func TestFacade_RecordsMetrics(t *testing.T) {
	metricsStore := store.NewMemoryStore("metrics", 0, store.WithCleanupInterval(0))
	t.Cleanup(func() { _ = metricsStore.Close() })
	collector := cachemetrics.New(metricsStore)
	f := newFlatFacade(t, WithRecorder(collector))
	ctx := context.Background()

	require.True(t, f.Put(ctx, "v1:static", "x", time.Minute, StaticTags()...))
	for i := 0; i < 3; i++ {
		require.True(t, f.Get(ctx, "v1:static", new(string), StaticTags()...))
	}
	require.False(t, f.Get(ctx, "v1:missing", new(string)))

	assert.Equal(t, 75.0, collector.HitRate(ctx))
	assert.Equal(t, 25.0, collector.MissRate(ctx))
	assert.Equal(t, int64(3), collector.TagStats(ctx)[TagStatic].Hits)

	top := collector.KeyStats(ctx, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "v1:static", top[0].Key)
}

func TestTagBuilders(t *testing.T) {
	assert.Equal(t, []string{"user:7"}, UserTags(7))
	assert.Equal(t, []string{"user:7", "tasks"}, TaskTags(7))
	assert.Equal(t, []string{"user:7", "analytics"}, AnalyticsTags("7"))
	assert.Equal(t, []string{"api", "api:dashboard"}, APITags("dashboard"))
	assert.Equal(t, []string{"api", "api:dashboard", "user:7"}, APITags("dashboard", 7))
	assert.Equal(t, []string{"static"}, StaticTags())
}

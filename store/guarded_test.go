package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-tagcache/breaker"
)

func newTestBreaker() *breaker.Breaker {
	return breaker.New("redis", breaker.Config{
		Enabled:             true,
		Strategy:            breaker.StrategyConsecutiveFailures,
		ConsecutiveFailures: 2,
		Timeout:             time.Hour,
	})
}

func TestGuardedStore_KeepsTagCapability(t *testing.T) {
	rs, mr := newTestRedisStore(t, "tasks:")
	s := NewGuardedStore(rs, newTestBreaker())
	ctx := context.Background()

	ts, ok := s.(TaggedStore)
	require.True(t, ok)
	assert.Equal(t, "redis", s.Name())

	require.NoError(t, ts.Tagged("user:1").Set(ctx, "v1:a", []byte("x"), time.Minute))
	got, err := ts.Tagged("user:1").Get(ctx, "v1:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	assert.Equal(t, []string{"user:1"}, ts.Tagged("user:1").Tags())

	require.NoError(t, ts.Tagged("user:1").Flush(ctx))
	assert.False(t, mr.Exists("tasks:v1:a"))

	_, isTagged := NewGuardedStore(NewMemoryStore("m", 0, WithCleanupInterval(0)), newTestBreaker()).(TaggedStore)
	assert.False(t, isTagged, "flat stores stay flat")
}

func TestGuardedStore_MissIsNotAFailure(t *testing.T) {
	br := newTestBreaker()
	s := NewGuardedStore(NewMemoryStore("m", 0, WithCleanupInterval(0)), br)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, breaker.StateClosed, br.State())
	assert.Equal(t, int64(5), br.Snapshot().Successes)
}

func TestGuardedStore_OpensOnBackendFailure(t *testing.T) {
	rs, mr := newTestRedisStore(t, "tasks:")
	br := newTestBreaker()
	s := NewGuardedStore(rs, br)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	mr.SetError("ERR injected failure")
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrGet)
	_, err = s.Incr(ctx, "n")
	assert.Error(t, err)
	require.Equal(t, breaker.StateOpen, br.State())

	mr.SetError("")
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen, "open breaker short-circuits a healthy backend")
	assert.ErrorIs(t, s.Flush(ctx), breaker.ErrCircuitOpen)
	assert.True(t, mr.Exists("tasks:k"))

	br.Reset()
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGuardedStore_ReporterAndClose(t *testing.T) {
	mem := NewMemoryStore("m", 0, WithCleanupInterval(0))
	s := NewGuardedStore(mem, newTestBreaker())
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	n, err := s.(Reporter).Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Same(t, mem, s.(*GuardedStore).Unwrap())

	require.NoError(t, s.Close())
	n, _ = mem.Size(ctx)
	assert.Zero(t, n, "close reaches the inner store")
}

package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/KOMKZ/go-yogan-tagcache/component"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

var errBackend = errors.New("dial tcp: connection refused")

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(t *testing.T, cfg Config, opts ...Option) (*Breaker, *fakeClock) {
	t.Helper()
	cfg.Enabled = true
	b := New("redis", cfg, opts...)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b.state.now = clock.Now
	b.state.lastStateChange = clock.Now()
	b.window.now = clock.Now
	return b, clock
}

func fail(context.Context) error { return errBackend }
func ok(context.Context) error   { return nil }

func TestBreaker_Disabled(t *testing.T) {
	b := New("redis", DefaultConfig())
	assert.False(t, b.Enabled())

	for i := 0; i < 100; i++ {
		assert.ErrorIs(t, b.Execute(context.Background(), fail), errBackend)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Snapshot().Requests)
}

func TestBreaker_ConsecutiveFailuresOpens(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 3})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	require.NoError(t, b.Execute(ctx, ok), "success resets the streak")
	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateClosed, b.State())

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker does not call the backend")
	assert.Equal(t, int64(1), b.Snapshot().Rejections)
}

func TestBreaker_ErrorRateOpens(t *testing.T) {
	b, _ := newTestBreaker(t, Config{MinRequests: 4, ErrorRateThreshold: 0.5})
	ctx := context.Background()

	require.NoError(t, b.Execute(ctx, ok))
	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateClosed, b.State(), "below min requests")

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, b.State())

	snap := b.Snapshot()
	assert.Equal(t, "redis", snap.Name)
	assert.Equal(t, int64(4), snap.Requests)
	assert.Equal(t, 0.75, snap.ErrorRate)
}

func TestBreaker_WindowExpires(t *testing.T) {
	b, clock := newTestBreaker(t, Config{MinRequests: 2, ErrorRateThreshold: 0.5, WindowSize: 2 * time.Second})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	clock.Advance(3 * time.Second)
	require.NoError(t, b.Execute(ctx, ok))
	require.NoError(t, b.Execute(ctx, ok))

	snap := b.Snapshot()
	assert.Equal(t, int64(2), snap.Requests, "failure fell out of the window")
	assert.Zero(t, snap.Failures)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(t,
		Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 1, Timeout: 10 * time.Second, HalfOpenRequests: 2},
		OnStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	require.Equal(t, StateOpen, b.State())

	clock.Advance(5 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, ok), ErrCircuitOpen, "still within timeout")

	clock.Advance(5 * time.Second)
	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 1, Timeout: time.Second})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	clock.Advance(time.Second)

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, clock := newTestBreaker(t, Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 1, Timeout: time.Second, HalfOpenRequests: 1})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	clock.Advance(time.Second)

	err := b.Execute(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, b.Execute(ctx, ok), ErrCircuitOpen, "second probe rejected while the first is in flight")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CanceledCallNotCounted(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 1})
	ctx := context.Background()

	err := b.Execute(ctx, func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Snapshot().Failures)

	err = b.Execute(ctx, func(context.Context) error { return context.DeadlineExceeded })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateOpen, b.State(), "timeouts count as failures")
}

func TestBreaker_ResetAndLogging(t *testing.T) {
	log := logger.NewTestCtxLogger()
	b, _ := newTestBreaker(t, Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 1}, WithLogger(log))
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	assert.True(t, log.HasLogWithField("WARN", "circuit breaker state changed", "to", "open"))

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Snapshot().Failures)
	assert.True(t, log.HasLogWithField("WARN", "circuit breaker state changed", "reason", "manual reset"))
	assert.NoError(t, b.Execute(ctx, ok))
}

func TestMetrics_OTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewMetrics(true)
	require.NoError(t, component.RegisterProvider(mp, m))

	b, _ := newTestBreaker(t, Config{Strategy: StrategyConsecutiveFailures, ConsecutiveFailures: 1}, WithMetrics(m))
	ctx := context.Background()
	require.NoError(t, b.Execute(ctx, ok))
	require.ErrorIs(t, b.Execute(ctx, fail), errBackend)
	require.ErrorIs(t, b.Execute(ctx, ok), ErrCircuitOpen)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	results := map[string]int64{}
	var state int64 = -1
	var transitions int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					switch md.Name {
					case "breaker_requests_total":
						v, _ := dp.Attributes.Value("result")
						results[v.AsString()] += dp.Value
					case "breaker_state_transitions_total":
						transitions += dp.Value
					}
				}
			case metricdata.Gauge[int64]:
				if md.Name == "breaker_state" {
					for _, dp := range data.DataPoints {
						state = dp.Value
					}
				}
			}
		}
	}
	assert.Equal(t, map[string]int64{"success": 1, "failure": 1, "rejected": 1}, results)
	assert.Equal(t, int64(1), transitions)
	assert.Equal(t, int64(StateOpen), state)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.record(context.Background(), "redis", outcomeSuccess)
	m.recordTransition(context.Background(), "redis", StateOpen)
	m.observe(nil)
	assert.False(t, NewMetrics(false).IsMetricsEnabled())
}

func TestConfig(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.Strategy = "slow_call_rate"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ErrorRateThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.WindowSize = 500 * time.Millisecond
	assert.Error(t, bad.Validate())

	assert.NoError(t, Config{Strategy: "bogus"}.Validate(), "disabled config is not validated")
}

func TestStrategyByName(t *testing.T) {
	assert.Equal(t, StrategyErrorRate, StrategyByName("").Name())
	assert.Equal(t, StrategyConsecutiveFailures, StrategyByName(StrategyConsecutiveFailures).Name())
}

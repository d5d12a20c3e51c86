package breaker

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/go-yogan-tagcache/component"
)

var _ component.MetricsProvider = (*Metrics)(nil)

// Metrics OTel 指标，实现 component.MetricsProvider
// nil *Metrics 的所有方法均为空操作
type Metrics struct {
	enabled    bool
	mu         sync.RWMutex
	registered bool

	requestsTotal    metric.Int64Counter // result=success|failure|rejected
	transitionsTotal metric.Int64Counter
	stateGauge       metric.Int64ObservableGauge

	breakersMu sync.RWMutex
	breakers   map[string]*Breaker
}

// NewMetrics creates breaker metrics
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{
		enabled:  enabled,
		breakers: make(map[string]*Breaker),
	}
}

// MetricsName returns the metrics group name
func (m *Metrics) MetricsName() string {
	return "breaker"
}

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *Metrics) IsMetricsEnabled() bool {
	return m.enabled
}

// RegisterMetrics registers all breaker metrics with the provided Meter
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"breaker_requests_total",
		metric.WithDescription("Total number of circuit breaker requests by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.transitionsTotal, err = meter.Int64Counter(
		"breaker_state_transitions_total",
		metric.WithDescription("Circuit breaker state transitions by target state"),
	)
	if err != nil {
		return err
	}

	m.stateGauge, err = meter.Int64ObservableGauge(
		"breaker_state",
		metric.WithDescription("Current circuit breaker state (0=closed, 1=open, 2=half-open)"),
		metric.WithInt64Callback(m.collectState),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

func (m *Metrics) collectState(_ context.Context, observer metric.Int64Observer) error {
	m.breakersMu.RLock()
	defer m.breakersMu.RUnlock()
	for name, b := range m.breakers {
		observer.Observe(int64(b.State()), metric.WithAttributes(attribute.String("breaker", name)))
	}
	return nil
}

func (m *Metrics) observe(b *Breaker) {
	if m == nil {
		return
	}
	m.breakersMu.Lock()
	defer m.breakersMu.Unlock()
	m.breakers[b.Name()] = b
}

func (m *Metrics) isRegistered() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

func (m *Metrics) record(ctx context.Context, name string, o outcome) {
	if !m.isRegistered() {
		return
	}
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("result", o.String()),
	))
}

func (m *Metrics) recordTransition(ctx context.Context, name string, to State) {
	if !m.isRegistered() {
		return
	}
	m.transitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("to", to.String()),
	))
}

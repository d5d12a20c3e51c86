package redis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics implements component.MetricsProvider for Redis command instrumentation
type Metrics struct {
	enabled    bool
	registered bool
	mu         sync.RWMutex

	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
	errorsTotal     metric.Int64Counter
}

// NewMetrics creates the provider
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// MetricsName returns the metrics group name
func (m *Metrics) MetricsName() string {
	return "redis"
}

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *Metrics) IsMetricsEnabled() bool {
	return m.enabled
}

// RegisterMetrics registers instruments on meter (idempotent)
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.commandsTotal, err = meter.Int64Counter(
		"redis_commands_total",
		metric.WithDescription("Total number of Redis commands executed"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	m.commandDuration, err = meter.Float64Histogram(
		"redis_command_duration_seconds",
		metric.WithDescription("Redis command duration distribution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.errorsTotal, err = meter.Int64Counter(
		"redis_errors_total",
		metric.WithDescription("Total number of Redis errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

// RecordCommand records one command
func (m *Metrics) RecordCommand(ctx context.Context, instance, cmd string, d time.Duration, failed bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.registered {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.String("command", cmd),
	)
	m.commandsTotal.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, d.Seconds(), attrs)
	if failed {
		m.errorsTotal.Add(ctx, 1, attrs)
	}
}

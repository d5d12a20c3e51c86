package cachemetrics

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/go-yogan-tagcache/component"
)

var _ component.MetricsProvider = (*Collector)(nil)

// MetricsName returns the metrics group name
func (c *Collector) MetricsName() string {
	return metricsName
}

// IsMetricsEnabled returns whether OTel export is enabled
func (c *Collector) IsMetricsEnabled() bool {
	return c.enabled
}

// RegisterMetrics registers instruments on meter (idempotent)
// Tag counters stay in the store only, to keep attribute cardinality bounded
func (c *Collector) RegisterMetrics(meter metric.Meter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return nil
	}

	var err error
	c.hitsCounter, err = meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	c.missesCounter, err = meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	c.slowCounter, err = meter.Int64Counter(
		"cache_slow_operations_total",
		metric.WithDescription("Total number of cache operations above the slow threshold"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	c.duration, err = meter.Float64Histogram(
		"cache_operation_duration_seconds",
		metric.WithDescription("Cache read duration distribution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	c.registered = true
	return nil
}

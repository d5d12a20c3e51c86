// Package component provides component interface definitions
package component

import (
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider defines the interface for components that provide metrics.
//
// Example implementation:
//
//	func (c *Collector) MetricsName() string {
//	    return "cache"
//	}
//
//	func (c *Collector) RegisterMetrics(meter metric.Meter) error {
//	    counter, err := meter.Int64Counter("cache_hits_total")
//	    if err != nil {
//	        return err
//	    }
//	    c.hitsCounter = counter
//	    return nil
//	}
type MetricsProvider interface {
	// MetricsName returns the metrics group name (used for Meter naming).
	MetricsName() string

	// RegisterMetrics registers all metrics for this component.
	RegisterMetrics(meter metric.Meter) error

	// IsMetricsEnabled returns whether metrics collection is enabled for this component.
	IsMetricsEnabled() bool
}

// RegisterProvider registers p on a meter named after p.MetricsName()
// Disabled providers are skipped
func RegisterProvider(mp metric.MeterProvider, p MetricsProvider) error {
	if mp == nil || !p.IsMetricsEnabled() {
		return nil
	}
	return p.RegisterMetrics(mp.Meter(p.MetricsName()))
}

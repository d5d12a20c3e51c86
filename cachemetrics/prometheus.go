package cachemetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector 将 store 中的全局统计暴露为 Prometheus gauge
// 每次 scrape 时读取一次计数器
type PrometheusCollector struct {
	collector *Collector
	timeout   time.Duration

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	hitRate   *prometheus.Desc
	slow      *prometheus.Desc
	cacheSize *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector 创建 Prometheus 适配器
func NewPrometheusCollector(c *Collector) *PrometheusCollector {
	return &PrometheusCollector{
		collector: c,
		timeout:   2 * time.Second,
		hits: prometheus.NewDesc("tagcache_hits",
			"Cache hits in the current metrics window", nil, nil),
		misses: prometheus.NewDesc("tagcache_misses",
			"Cache misses in the current metrics window", nil, nil),
		hitRate: prometheus.NewDesc("tagcache_hit_rate_percent",
			"Cache hit rate (0-100)", nil, nil),
		slow: prometheus.NewDesc("tagcache_slow_operations",
			"Cache operations above the slow threshold", nil, nil),
		cacheSize: prometheus.NewDesc("tagcache_size_keys",
			"Number of keys in the data store", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.hits
	ch <- p.misses
	ch <- p.hitRate
	ch <- p.slow
	ch <- p.cacheSize
}

// Collect implements prometheus.Collector
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	st := p.collector.OverallStats(ctx)
	ch <- prometheus.MustNewConstMetric(p.hits, prometheus.GaugeValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(p.misses, prometheus.GaugeValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(p.hitRate, prometheus.GaugeValue, st.HitRate)
	ch <- prometheus.MustNewConstMetric(p.slow, prometheus.GaugeValue, float64(st.SlowOperations))
	ch <- prometheus.MustNewConstMetric(p.cacheSize, prometheus.GaugeValue, float64(st.CacheSize))
}

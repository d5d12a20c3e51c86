package cachemetrics

import (
	"context"
	"time"
)

// Snapshot 导出给外部监控的指标快照
type Snapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Overall   OverallStats        `json:"overall"`
	Tags      map[string]TagStats `json:"tags"`
	TopKeys   map[string]KeyStats `json:"top_keys"`
	Memory    map[string]any      `json:"memory"`
}

// Export 生成带时间戳的完整快照，top_keys 取命中数最高的 DefaultTopKeys 个
func (c *Collector) Export(ctx context.Context) Snapshot {
	overall := c.OverallStats(ctx)

	top := make(map[string]KeyStats)
	for _, st := range c.KeyStats(ctx, DefaultTopKeys) {
		top[st.Key] = st
	}

	return Snapshot{
		Timestamp: c.now().UTC(),
		Overall:   overall,
		Tags:      c.TagStats(ctx),
		TopKeys:   top,
		Memory:    overall.MemoryUsage,
	}
}

package cache

import "time"

// 数据分类（TTL 表的 key）
const (
	ClassAnalytics = "analytics"
	ClassLists     = "lists"
	ClassUser      = "user"
	ClassStatic    = "static"
	ClassAPI       = "api"
)

// DefaultTTL 未知分类以及 Put/Remember 传入 ttl <= 0 时使用
const DefaultTTL = 180 * time.Second

var defaultTTLs = map[string]time.Duration{
	ClassAnalytics: 300 * time.Second,
	ClassLists:     180 * time.Second,
	ClassUser:      900 * time.Second,
	ClassStatic:    3600 * time.Second,
	ClassAPI:       600 * time.Second,
}

// TTLTable 数据分类到 TTL 的映射（只读，可并发使用）
type TTLTable struct {
	ttls     map[string]time.Duration
	fallback time.Duration
}

// NewTTLTable 在内置表上叠加 overrides；fallback <= 0 时为 DefaultTTL
// overrides 中 <= 0 的值被忽略
func NewTTLTable(overrides map[string]time.Duration, fallback time.Duration) *TTLTable {
	if fallback <= 0 {
		fallback = DefaultTTL
	}
	ttls := make(map[string]time.Duration, len(defaultTTLs)+len(overrides))
	for k, v := range defaultTTLs {
		ttls[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			ttls[k] = v
		}
	}
	return &TTLTable{ttls: ttls, fallback: fallback}
}

// TTL 返回分类的 TTL，未知分类返回 fallback
func (t *TTLTable) TTL(class string) time.Duration {
	if ttl, ok := t.ttls[class]; ok {
		return ttl
	}
	return t.fallback
}

// Default 返回 fallback
func (t *TTLTable) Default() time.Duration {
	return t.fallback
}

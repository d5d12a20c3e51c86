package cache

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-tagcache/breaker"
	"github.com/KOMKZ/go-yogan-tagcache/cachekey"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
)

// 存储类型
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
	StoreTypeChain  = "chain"
)

const (
	defaultStoreName      = "default"
	defaultMemoryMaxSize  = 10000
	defaultRedisKeyPrefix = "cache:"
	metricsKeyPrefix      = "cache_metrics:"
	defaultReportInterval = 5 * time.Minute
	defaultPruneInterval  = 10 * time.Minute
)

// Config Configuration for cache component (section "cache")
type Config struct {
	// Enabled whether to enable caching
	Enabled bool `mapstructure:"enabled"`

	// KeyVersion version segment of every key, bump to drop all cached data
	KeyVersion string `mapstructure:"key_version"`

	// DefaultTTL unknown data classes and Put/Remember with ttl <= 0
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// TTLs per data class overrides (analytics, lists, user, static, api)
	TTLs map[string]time.Duration `mapstructure:"ttls"`

	// SlowThreshold reads above it are counted as slow
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	// MetricsTTL expiry of every metrics counter
	MetricsTTL time.Duration `mapstructure:"metrics_ttl"`

	// MetricsEnabled exports OTel instruments
	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	// ReportInterval periodic stats log, 0 uses the default, negative disables
	ReportInterval time.Duration `mapstructure:"report_interval"`

	// TagPruneInterval removes expired members from tag sets, 0 uses the default, negative disables
	TagPruneInterval time.Duration `mapstructure:"tag_prune_interval"`

	// Store data store name
	Store string `mapstructure:"store"`

	// MetricsStore counters store name; empty derives one from the data store
	MetricsStore string `mapstructure:"metrics_store"`

	// Stores backend configuration
	Stores map[string]StoreConfig `mapstructure:"stores"`

	// InvalidationRules event -> tags
	InvalidationRules []InvalidationRule `mapstructure:"invalidation_rules"`

	// Breaker guards the data store; an open breaker makes every call fail open immediately
	Breaker breaker.Config `mapstructure:"breaker"`
}

// StoreConfig stores backend configuration
type StoreConfig struct {
	// Type storage: redis, memory, chain
	Type string `mapstructure:"type"`

	// Redis related configuration
	Instance  string `mapstructure:"instance"`   // Redis instance name
	KeyPrefix string `mapstructure:"key_prefix"` // Key prefix

	// Memory related configurations
	MaxSize int `mapstructure:"max_size"` // Maximum item count

	// Chain related configurations
	Layers []string `mapstructure:"layers"` // cache layer list, front to back
}

// InvalidationRule invalidation rule
type InvalidationRule struct {
	// Event name of the trigger event
	Event string `mapstructure:"event"`

	// Tags flushed on every event; events implementing TagInvalidator add their own
	Tags []string `mapstructure:"tags"`
}

// DefaultConfig memory backed, enabled
func DefaultConfig() Config {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults Apply default values
func (c *Config) ApplyDefaults() {
	if c.KeyVersion == "" {
		c.KeyVersion = cachekey.DefaultVersion
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = cachemetrics.DefaultSlowThreshold
	}
	if c.MetricsTTL <= 0 {
		c.MetricsTTL = cachemetrics.DefaultTTL
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = defaultReportInterval
	}
	if c.TagPruneInterval == 0 {
		c.TagPruneInterval = defaultPruneInterval
	}
	if c.Store == "" {
		c.Store = defaultStoreName
	}
	if c.Stores == nil {
		c.Stores = make(map[string]StoreConfig)
	}
	c.Breaker.ApplyDefaults()
	if _, ok := c.Stores[c.Store]; !ok && c.Store == defaultStoreName {
		c.Stores[c.Store] = StoreConfig{Type: StoreTypeMemory}
	}

	for name, sc := range c.Stores {
		switch sc.Type {
		case StoreTypeMemory:
			if sc.MaxSize <= 0 {
				sc.MaxSize = defaultMemoryMaxSize
			}
		case StoreTypeRedis:
			if sc.KeyPrefix == "" {
				sc.KeyPrefix = defaultRedisKeyPrefix
			}
		}
		c.Stores[name] = sc
	}
}

// Validate configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	err := validation.ValidateStruct(&c,
		validation.Field(&c.KeyVersion, validation.Required),
		validation.Field(&c.DefaultTTL, validation.Min(time.Second)),
		validation.Field(&c.Store, validation.Required, validation.By(c.storeExists)),
		validation.Field(&c.MetricsStore, validation.By(c.storeExists)),
		validation.Field(&c.Stores, validation.Required),
		validation.Field(&c.InvalidationRules),
		validation.Field(&c.Breaker),
	)
	if err != nil {
		return err
	}

	for name, sc := range c.Stores {
		if err := c.validateStore(sc); err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
	}
	return nil
}

func (c Config) storeExists(value any) error {
	name, _ := value.(string)
	if name == "" {
		return nil
	}
	if _, ok := c.Stores[name]; !ok {
		return fmt.Errorf("store %s is not configured", name)
	}
	return nil
}

func (c Config) validateStore(sc StoreConfig) error {
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Type, validation.Required,
			validation.In(StoreTypeMemory, StoreTypeRedis, StoreTypeChain).Error("must be memory, redis or chain")),
		validation.Field(&sc.Instance, validation.When(sc.Type == StoreTypeRedis, validation.Required)),
		validation.Field(&sc.MaxSize, validation.Min(0)),
		validation.Field(&sc.Layers,
			validation.When(sc.Type == StoreTypeChain, validation.Required, validation.Each(validation.By(c.plainLayer)))),
	)
}

// plainLayer 链式存储的每一层必须是已配置的非链式存储
func (c Config) plainLayer(value any) error {
	name, _ := value.(string)
	layer, ok := c.Stores[name]
	if !ok {
		return fmt.Errorf("layer %s is not configured", name)
	}
	if layer.Type == StoreTypeChain {
		return fmt.Errorf("layer %s cannot be a chain", name)
	}
	return nil
}

// Validate implements validation.Validatable
func (r InvalidationRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Event, validation.Required),
	)
}

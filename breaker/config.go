package breaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 熔断配置（cache.breaker 配置段）
type Config struct {
	// Enabled 默认不启用
	Enabled bool `mapstructure:"enabled"`

	// Strategy error_rate 或 consecutive_failures
	Strategy string `mapstructure:"strategy"`

	// MinRequests error_rate 策略的最小样本数
	MinRequests int `mapstructure:"min_requests"`

	// ErrorRateThreshold 0.0 - 1.0
	ErrorRateThreshold float64 `mapstructure:"error_rate_threshold"`

	ConsecutiveFailures int `mapstructure:"consecutive_failures"`

	// Timeout 打开多久后进入半开
	Timeout time.Duration `mapstructure:"timeout"`

	// HalfOpenRequests 半开状态放行的试探请求数，全部成功才关闭
	HalfOpenRequests int `mapstructure:"half_open_requests"`

	WindowSize time.Duration `mapstructure:"window_size"`
	BucketSize time.Duration `mapstructure:"bucket_size"`
}

// DefaultConfig 默认配置（未启用）
func DefaultConfig() Config {
	return Config{
		Strategy:            StrategyErrorRate,
		MinRequests:         20,
		ErrorRateThreshold:  0.5,
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		HalfOpenRequests:    3,
		WindowSize:          10 * time.Second,
		BucketSize:          time.Second,
	}
}

// ApplyDefaults 零值字段取默认值
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.ErrorRateThreshold == 0 {
		c.ErrorRateThreshold = d.ErrorRateThreshold
	}
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = d.ConsecutiveFailures
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = d.HalfOpenRequests
	}
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.BucketSize == 0 {
		c.BucketSize = d.BucketSize
	}
}

// Validate 校验配置，未启用时跳过
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Strategy, validation.In(StrategyErrorRate, StrategyConsecutiveFailures)),
		validation.Field(&c.MinRequests, validation.Min(0)),
		validation.Field(&c.ErrorRateThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.ConsecutiveFailures, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Min(time.Millisecond)),
		validation.Field(&c.HalfOpenRequests, validation.Min(1)),
		validation.Field(&c.BucketSize, validation.Min(time.Millisecond)),
		validation.Field(&c.WindowSize, validation.Min(c.BucketSize).Error("must be >= bucket_size")),
	)
}

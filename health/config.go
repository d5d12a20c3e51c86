package health

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 健康检查配置（配置段 "health"）
type Config struct {
	Enabled bool          `mapstructure:"enabled"` // 是否暴露 /health
	Timeout time.Duration `mapstructure:"timeout"` // 单次检查总超时
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Timeout: 5 * time.Second,
	}
}

// ApplyDefaults 填充零值
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(time.Millisecond), validation.Max(time.Minute)),
	)
}

package redis

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
)

const (
	ModeStandalone = "standalone"
	ModeCluster    = "cluster"
)

// Config Redis instance settings (one entry under the "redis" section)
type Config struct {
	// Mode: "standalone" or "cluster"
	Mode string `mapstructure:"mode"`

	// Address list
	// standalone: the first address is used
	// cluster: all addresses are seeds
	Addrs []string `mapstructure:"addrs"`

	// Addr single address, folded into Addrs
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`

	// DB database number (0-15, standalone only)
	DB int `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`      // default 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // default 5
	MaxRetries   int           `mapstructure:"max_retries"`    // default 3
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // default 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // default 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // default 3s

	// Metrics records command counts and latency through OTel
	Metrics bool `mapstructure:"metrics"`
}

// Validate configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStandalone, ModeCluster).
			Error("must be standalone or cluster")),
		validation.Field(&c.Addrs, validation.Required.Error("addrs cannot be empty")),
		validation.Field(&c.DB, validation.When(c.Mode == ModeStandalone, validation.Min(0), validation.Max(15))),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.MinIdleConns, validation.Min(0)),
	)
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.Addr != "" && len(c.Addrs) == 0 {
		c.Addrs = []string{c.Addr}
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// newClient builds a client for the configured mode
func (c Config) newClient() redis.UniversalClient {
	opts := c.universalOptions()
	if c.Mode == ModeCluster {
		return redis.NewClusterClient(opts.Cluster())
	}
	return redis.NewClient(opts.Simple())
}

func (c Config) universalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:        c.Addrs,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

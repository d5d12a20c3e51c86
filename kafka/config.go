package kafka

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	defaultTopic       = "tagcache.invalidation"
	defaultGroupPrefix = "tagcache"
	defaultVersion     = "3.8.0"
	defaultClientID    = "tagcache"
)

// Config 失效广播配置（配置段 "kafka"）
type Config struct {
	// Enabled 默认不启用，单实例部署无需广播
	Enabled bool `mapstructure:"enabled"`

	Brokers  []string `mapstructure:"brokers"`
	Version  string   `mapstructure:"version"`
	ClientID string   `mapstructure:"client_id"`

	// Topic 所有实例共用的失效 topic
	Topic string `mapstructure:"topic"`

	// GroupPrefix 每个实例使用 <prefix>-<instance id> 作为独立消费组，保证每个实例都收到全部消息
	GroupPrefix string `mapstructure:"group_prefix"`

	Producer ProducerConfig `mapstructure:"producer"`
	Consumer ConsumerConfig `mapstructure:"consumer"`

	SASL *SASLConfig `mapstructure:"sasl"`
	TLS  *TLSConfig  `mapstructure:"tls"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// RequiredAcks -1 (all), 0 (none), 1 (leader)
	RequiredAcks int           `mapstructure:"required_acks"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Compression  string        `mapstructure:"compression"`
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	// OffsetInitial -1 (newest) 或 -2 (oldest)；新实例只关心启动后的失效
	OffsetInitial     int64         `mapstructure:"offset_initial"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// RetryBackoff Consume 返回错误后重试前的等待
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// SASLConfig SASL 认证
type SASLConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Mechanism PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `mapstructure:"mechanism"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig TLS 连接
type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// ApplyDefaults 填充零值
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = defaultVersion
	}
	if c.ClientID == "" {
		c.ClientID = defaultClientID
	}
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
	if c.GroupPrefix == "" {
		c.GroupPrefix = defaultGroupPrefix
	}

	if c.Producer.RequiredAcks == 0 {
		c.Producer.RequiredAcks = 1
	}
	if c.Producer.Timeout == 0 {
		c.Producer.Timeout = 10 * time.Second
	}
	if c.Producer.RetryMax == 0 {
		c.Producer.RetryMax = 3
	}
	if c.Producer.RetryBackoff == 0 {
		c.Producer.RetryBackoff = 100 * time.Millisecond
	}
	if c.Producer.Compression == "" {
		c.Producer.Compression = "none"
	}

	if c.Consumer.OffsetInitial == 0 {
		c.Consumer.OffsetInitial = sarama.OffsetNewest
	}
	if c.Consumer.SessionTimeout == 0 {
		c.Consumer.SessionTimeout = 10 * time.Second
	}
	if c.Consumer.HeartbeatInterval == 0 {
		c.Consumer.HeartbeatInterval = 3 * time.Second
	}
	if c.Consumer.RetryBackoff == 0 {
		c.Consumer.RetryBackoff = time.Second
	}
}

// Validate 校验配置，未启用时跳过
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Brokers, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.Version, validation.Required, validation.By(validVersion)),
		validation.Field(&c.Topic, validation.Required),
		validation.Field(&c.GroupPrefix, validation.Required),
		validation.Field(&c.Producer),
		validation.Field(&c.Consumer),
		validation.Field(&c.SASL),
	)
}

func validVersion(value any) error {
	v, _ := value.(string)
	if _, err := sarama.ParseKafkaVersion(v); err != nil {
		return err
	}
	return nil
}

// Validate implements validation.Validatable
func (c ProducerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RequiredAcks, validation.In(-1, 0, 1)),
		validation.Field(&c.RetryMax, validation.Min(0)),
		validation.Field(&c.Compression, validation.In("none", "gzip", "snappy", "lz4", "zstd")),
	)
}

// Validate implements validation.Validatable
func (c ConsumerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.OffsetInitial, validation.In(sarama.OffsetNewest, sarama.OffsetOldest)),
	)
}

// Validate implements validation.Validatable
func (c *SASLConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mechanism, validation.In("PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512")),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// saramaConfig 生成 sarama 客户端配置，生产者同步返回结果，消费组 offset 自动提交
func (c Config) saramaConfig() (*sarama.Config, error) {
	sc := sarama.NewConfig()

	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version failed: %w", err)
	}
	sc.Version = version
	sc.ClientID = c.ClientID

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	switch c.Producer.RequiredAcks {
	case 0:
		sc.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	default:
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}
	sc.Producer.Timeout = c.Producer.Timeout
	sc.Producer.Retry.Max = c.Producer.RetryMax
	sc.Producer.Retry.Backoff = c.Producer.RetryBackoff
	switch c.Producer.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = c.Consumer.OffsetInitial
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Group.Session.Timeout = c.Consumer.SessionTimeout
	sc.Consumer.Group.Heartbeat.Interval = c.Consumer.HeartbeatInterval

	if c.SASL != nil && c.SASL.Enabled {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = c.SASL.Username
		sc.Net.SASL.Password = c.SASL.Password
		switch c.SASL.Mechanism {
		case "SCRAM-SHA-256":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashFn: sha256Fn}
			}
		case "SCRAM-SHA-512":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashFn: sha512Fn}
			}
		default:
			sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	if c.TLS != nil && c.TLS.Enabled {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{InsecureSkipVerify: c.TLS.InsecureSkipVerify} //nolint:gosec // opt-in
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}
	return sc, nil
}

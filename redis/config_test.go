package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:6379"}
	cfg.ApplyDefaults()

	assert.Equal(t, ModeStandalone, cfg.Mode)
	assert.Equal(t, []string{"127.0.0.1:6379"}, cfg.Addrs)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5, cfg.MinIdleConns)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"无效的模式", Config{Mode: "sentinel", Addrs: []string{"a:1"}}, "must be standalone or cluster"},
		{"空地址列表", Config{Mode: ModeStandalone}, "addrs cannot be empty"},
		{"DB 越界", Config{Mode: ModeStandalone, Addrs: []string{"a:1"}, DB: 16}, "DB"},
		{"负数连接池", Config{Mode: ModeStandalone, Addrs: []string{"a:1"}, PoolSize: -1}, "PoolSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}

	// cluster 模式不校验 DB
	assert.NoError(t, Config{Mode: ModeCluster, Addrs: []string{"a:1", "b:2"}, DB: 99}.Validate())
}

//go:build integration

package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// 需要真实 Kafka：KAFKA_BROKERS=localhost:19092 go test -tags=integration ./kafka/...

func integrationConfig(t *testing.T) Config {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set")
	}
	return Config{
		Enabled: true,
		Brokers: strings.Split(brokers, ","),
		Topic:   "tagcache.invalidation.it",
	}
}

func TestIntegration_BusRoundTrip(t *testing.T) {
	cfg := integrationConfig(t)
	log := logger.GetLogger("kafka")

	a, err := NewBus(cfg, log)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewBus(cfg, log)
	require.NoError(t, err)
	defer b.Close()

	received := make(chan []string, 4)
	apply := func(_ context.Context, tags []string) error {
		received <- tags
		return nil
	}
	ctx := context.Background()
	require.NoError(t, a.Start(ctx, func(context.Context, []string) error { return nil }))
	require.NoError(t, b.Start(ctx, apply))

	// 等待消费组完成 rebalance，OffsetNewest 下之前发送的消息不会被消费
	deadline := time.After(30 * time.Second)
	for {
		require.NoError(t, a.PublishInvalidation(ctx, []string{"user:7"}))
		select {
		case tags := <-received:
			assert.Equal(t, []string{"user:7"}, tags)
			assert.NoError(t, b.Check(ctx))
			return
		case <-time.After(time.Second):
		case <-deadline:
			t.Fatal("invalidation not received")
		}
	}
}

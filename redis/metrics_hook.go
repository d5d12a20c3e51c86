package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// metricsHook implements redis.Hook to record command metrics
type metricsHook struct {
	metrics  *Metrics
	instance string
}

func newMetricsHook(metrics *Metrics, instance string) *metricsHook {
	return &metricsHook{metrics: metrics, instance: instance}
}

// DialHook pass through
func (h *metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook records single commands
func (h *metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.metrics.RecordCommand(ctx, h.instance, cmd.Name(), time.Since(start), isFailure(err))
		return err
	}
}

// ProcessPipelineHook records each pipelined command with an even share of the round trip
func (h *metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if len(cmds) == 0 {
			return err
		}
		share := time.Since(start) / time.Duration(len(cmds))
		for _, cmd := range cmds {
			h.metrics.RecordCommand(ctx, h.instance, cmd.Name(), share, isFailure(cmd.Err()))
		}
		return err
	}
}

func isFailure(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil)
}

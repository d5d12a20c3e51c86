package kafka

import (
	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// handler implements sarama.ConsumerGroupHandler
type handler struct {
	origin string
	apply  ApplyFunc
	log    logger.CtxLogger
	bus    *Bus
}

func (h *handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(session, msg)
			session.MarkMessage(msg, "")
		}
	}
}

// handle 解析失败或本地失效失败只记录日志，消息照常提交
func (h *handler) handle(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	ctx := session.Context()
	inv, err := decodeInvalidation(msg.Value)
	if err != nil {
		h.log.WarnCtx(ctx, "invalid invalidation message",
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}
	if inv.Origin == h.origin {
		return
	}

	var tags []string
	if !inv.All {
		if len(inv.Tags) == 0 {
			return
		}
		tags = inv.Tags
	}
	if err := h.apply(ctx, tags); err != nil {
		h.log.ErrorCtx(ctx, "apply remote invalidation failed",
			zap.String("origin", inv.Origin),
			zap.Strings("tags", tags),
			zap.Error(err))
		if h.bus != nil {
			h.bus.setErr(err)
		}
		return
	}
	if h.bus != nil {
		h.bus.setErr(nil)
	}
	h.log.DebugCtx(ctx, "remote invalidation applied",
		zap.String("origin", inv.Origin),
		zap.Strings("tags", tags),
		zap.Bool("all", inv.All))
}

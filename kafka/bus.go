// Package kafka 基于 Kafka topic 的跨实例缓存失效广播
//
// 每个实例以 origin ID 标记自己发出的失效，使用独立消费组订阅同一 topic，
// 收到其他实例的消息后只在本地执行失效，不再转发。
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// ApplyFunc 在本地执行收到的失效，tags 为空表示整体清空
// 通常为 (*cache.Facade).ApplyInvalidation
type ApplyFunc func(ctx context.Context, tags []string) error

// Bus 失效广播总线，实现 cache.Broadcaster
type Bus struct {
	cfg      Config
	origin   string
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	log      logger.CtxLogger

	mu      sync.Mutex
	running bool
	closed  bool
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBus 连接 broker 并创建生产者和本实例独立的消费组
func NewBus(cfg Config, log logger.CtxLogger) (*Bus, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	sc, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}

	origin := uuid.NewString()
	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create producer failed: %w", err)
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID(cfg.GroupPrefix, origin), sc)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("create consumer group failed: %w", err)
	}
	return newBus(cfg, origin, producer, group, log), nil
}

func newBus(cfg Config, origin string, producer sarama.SyncProducer, group sarama.ConsumerGroup, log logger.CtxLogger) *Bus {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Bus{
		cfg:      cfg,
		origin:   origin,
		producer: producer,
		group:    group,
		log:      log,
	}
}

func groupID(prefix, origin string) string {
	return prefix + "-" + origin
}

// Origin 本实例 ID
func (b *Bus) Origin() string {
	return b.origin
}

// Topic 失效 topic
func (b *Bus) Topic() string {
	return b.cfg.Topic
}

// PublishInvalidation 广播本实例已完成的失效，tags 为空表示整体清空
func (b *Bus) PublishInvalidation(ctx context.Context, tags []string) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := newInvalidation(b.origin, tags).encode()
	if err != nil {
		return ErrPublish.Wrap(err)
	}
	msg := &sarama.ProducerMessage{
		Topic: b.cfg.Topic,
		Key:   sarama.StringEncoder(b.origin),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		return ErrPublish.WithData("topic", b.cfg.Topic).Wrap(err)
	}
	b.log.DebugCtx(ctx, "invalidation published",
		zap.Strings("tags", tags),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Start 在后台消费其他实例的失效，Close 或 ctx 取消时停止
func (b *Bus) Start(ctx context.Context, apply ApplyFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.running {
		return ErrAlreadyStarted
	}
	b.running = true

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go b.drainErrors(ctx)
	go b.consumeLoop(ctx, &handler{origin: b.origin, apply: apply, log: b.log, bus: b})

	b.log.InfoCtx(ctx, "invalidation consumer started",
		zap.String("topic", b.cfg.Topic),
		zap.String("origin", b.origin))
	return nil
}

func (b *Bus) consumeLoop(ctx context.Context, h *handler) {
	defer close(b.done)
	topics := []string{b.cfg.Topic}
	for {
		err := b.group.Consume(ctx, topics, h)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			b.setErr(err)
			b.log.ErrorCtx(ctx, "invalidation consume error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.cfg.Consumer.RetryBackoff):
			}
		}
	}
}

// drainErrors 读取消费组的异步错误（Consumer.Return.Errors=true）
func (b *Bus) drainErrors(ctx context.Context) {
	errs := b.group.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			b.setErr(err)
			b.log.WarnCtx(ctx, "invalidation consumer group error", zap.Error(err))
		}
	}
}

func (b *Bus) setErr(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// Close 停止消费并关闭客户端，可重复调用
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var errs []error
	if err := b.group.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close consumer group: %w", err))
	}
	if done != nil {
		<-done
	}
	if err := b.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	return errors.Join(errs...)
}

// Shutdown implements do.Shutdowner
func (b *Bus) Shutdown() error {
	return b.Close()
}

// Name implements component.HealthChecker
func (b *Bus) Name() string {
	return "kafka"
}

// Check 返回最近一次消费错误，成功处理消息后清除
func (b *Bus) Check(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.lastErr
}

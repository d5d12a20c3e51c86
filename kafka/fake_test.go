package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
)

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Marked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

// fakeGroup 每次 Consume 开启一个会话，把 msgs 交给 handler，直到 ctx 取消
// failures 次数内 Consume 直接返回 consumeErr
type fakeGroup struct {
	sarama.ConsumerGroup
	msgs       chan *sarama.ConsumerMessage
	errs       chan error
	consumeErr error

	mu       sync.Mutex
	failures int
	calls    int
	session  *fakeSession
	closed   bool
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{
		msgs: make(chan *sarama.ConsumerMessage, 16),
		errs: make(chan error, 1),
	}
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, h sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	g.calls++
	if g.failures > 0 {
		g.failures--
		g.mu.Unlock()
		return g.consumeErr
	}
	session := &fakeSession{ctx: ctx}
	g.session = session
	g.mu.Unlock()

	if err := h.Setup(session); err != nil {
		return err
	}
	err := h.ConsumeClaim(session, &fakeClaim{msgs: g.msgs})
	_ = h.Cleanup(session)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *fakeGroup) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGroup) Session() *fakeSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

func message(offset int64, inv Invalidation) *sarama.ConsumerMessage {
	data, _ := inv.encode()
	return &sarama.ConsumerMessage{Topic: defaultTopic, Offset: offset, Value: data}
}

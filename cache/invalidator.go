package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/event"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

// EventTaskChanged 任务创建、更新、删除后发布
const EventTaskChanged = "task.changed"

// TaskChangedEvent 刷新该用户的任务相关缓存
type TaskChangedEvent struct {
	event.BaseEvent
	UserID any
}

// NewTaskChangedEvent creates a task.changed event
func NewTaskChangedEvent(userID any) *TaskChangedEvent {
	return &TaskChangedEvent{BaseEvent: event.NewEvent(EventTaskChanged), UserID: userID}
}

// InvalidationTags implements TagInvalidator
func (e *TaskChangedEvent) InvalidationTags() []string {
	return TaskTags(e.UserID)
}

// TagsEvent 携带任意标签的通用失效事件
type TagsEvent struct {
	event.BaseEvent
	tags []string
}

// NewTagsEvent creates an event whose InvalidationTags are tags
func NewTagsEvent(name string, tags ...string) *TagsEvent {
	return &TagsEvent{BaseEvent: event.NewEvent(name), tags: tags}
}

// InvalidationTags implements TagInvalidator
func (e *TagsEvent) InvalidationTags() []string {
	return e.tags
}

// Invalidator 按规则订阅事件并刷新标签
type Invalidator struct {
	facade *Facade
	rules  []InvalidationRule
	logger logger.CtxLogger
}

// NewInvalidator creates the invalidator
func NewInvalidator(f *Facade, rules []InvalidationRule, log logger.CtxLogger) *Invalidator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Invalidator{facade: f, rules: rules, logger: log}
}

// Subscribe 为每条规则订阅事件，返回的函数取消全部订阅
func (i *Invalidator) Subscribe(d event.Dispatcher) event.UnsubscribeFunc {
	unsubs := make([]event.UnsubscribeFunc, 0, len(i.rules))
	for _, rule := range i.rules {
		unsubs = append(unsubs, d.Subscribe(rule.Event, i.Handler(rule)))
		i.logger.DebugCtx(context.Background(), "subscribed invalidation event",
			zap.String("event", rule.Event),
			zap.Strings("tags", rule.Tags))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// Handler 刷新规则标签以及事件通过 TagInvalidator 给出的标签
// 总是返回 nil：缓存失效失败不影响事件链
func (i *Invalidator) Handler(rule InvalidationRule) event.Listener {
	return event.ListenerFunc(func(ctx context.Context, e event.Event) error {
		tags := append([]string(nil), rule.Tags...)
		if inv, ok := e.(TagInvalidator); ok {
			tags = append(tags, inv.InvalidationTags()...)
		}
		tags = compactTags(tags)

		if len(tags) == 0 {
			i.logger.WarnCtx(ctx, "event carries no invalidation tags",
				zap.String("event", e.Name()))
			return nil
		}

		if !i.facade.FlushTags(ctx, tags...) {
			return nil
		}
		i.logger.InfoCtx(ctx, "cache invalidated by event",
			zap.String("event", e.Name()),
			zap.Strings("tags", tags))
		return nil
	})
}

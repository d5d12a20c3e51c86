package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// UnsubscribeFunc cancels a subscription
type UnsubscribeFunc func()

// Dispatcher event dispatcher interface
type Dispatcher interface {
	// Subscribe to event, return unsubscribe function
	Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc

	// Dispatch runs listeners synchronously in priority order
	Dispatch(ctx context.Context, event Event) error

	// DispatchAsync runs Dispatch on the goroutine pool; errors are logged
	DispatchAsync(ctx context.Context, event Event)

	// Use register global interceptors
	Use(interceptor Interceptor)

	// Close releases the pool, later dispatches are rejected
	Close()
}

type dispatcher struct {
	mu           sync.RWMutex
	listeners    map[string][]listenerEntry
	interceptors []Interceptor
	nextID       uint64
	pool         *ants.Pool
	poolSize     int
	logger       *logger.CtxZapLogger
	closed       int32
	setAllSync   bool
}

var _ Dispatcher = (*dispatcher)(nil)

// NewDispatcher creates an event dispatcher
func NewDispatcher(opts ...DispatcherOption) Dispatcher {
	d := &dispatcher{
		listeners: make(map[string][]listenerEntry),
		poolSize:  100,
		logger:    logger.GetLogger("event"),
	}

	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.pool, err = ants.NewPool(d.poolSize)
	if err != nil {
		d.logger.Error("创建协程池失败，使用默认配置", zap.Error(err))
		d.pool, _ = ants.NewPool(100)
	}

	return d
}

// Subscribe to event
func (d *dispatcher) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc {
	if eventName == "" || listener == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&d.nextID, 1),
		listener: listener,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	if d.setAllSync {
		entry.async = false
	}

	d.mu.Lock()
	d.listeners[eventName] = append(d.listeners[eventName], entry)
	sort.SliceStable(d.listeners[eventName], func(i, j int) bool {
		return d.listeners[eventName][i].priority < d.listeners[eventName][j].priority
	})
	d.mu.Unlock()

	return func() {
		d.removeListeners(eventName, entry.id)
	}
}

// Use register global interceptors
func (d *dispatcher) Use(interceptor Interceptor) {
	d.mu.Lock()
	d.interceptors = append(d.interceptors, interceptor)
	d.mu.Unlock()
}

// Dispatch synchronous distribution
func (d *dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event == nil {
		return nil
	}
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrDispatcherClosed
	}

	d.mu.RLock()
	interceptors := make([]Interceptor, len(d.interceptors))
	copy(interceptors, d.interceptors)
	entries := make([]listenerEntry, len(d.listeners[event.Name()]))
	copy(entries, d.listeners[event.Name()])
	d.mu.RUnlock()

	handler := d.buildHandlerChain(entries, interceptors)
	err := handler(ctx, event)

	var onceIDs []uint64
	for _, e := range entries {
		if e.once {
			onceIDs = append(onceIDs, e.id)
		}
	}
	d.removeListeners(event.Name(), onceIDs...)

	if errors.Is(err, ErrStopPropagation) {
		return nil
	}
	return err
}

// DispatchAsync asynchronous distribution
// The listener context keeps ctx values (trace id) but not its cancellation
func (d *dispatcher) DispatchAsync(ctx context.Context, event Event) {
	if event == nil || atomic.LoadInt32(&d.closed) == 1 {
		return
	}
	if d.setAllSync {
		if err := d.Dispatch(ctx, event); err != nil {
			d.logger.ErrorCtx(ctx, "事件处理失败", zap.String("event", event.Name()), zap.Error(err))
		}
		return
	}

	asyncCtx := context.WithoutCancel(ctx)
	err := d.pool.Submit(func() {
		if err := d.Dispatch(asyncCtx, event); err != nil {
			d.logger.ErrorCtx(asyncCtx, "异步事件处理失败",
				zap.String("event", event.Name()),
				zap.Error(err))
		}
	})
	if err != nil {
		d.logger.ErrorCtx(ctx, "提交异步任务失败",
			zap.String("event", event.Name()),
			zap.Error(err))
	}
}

// buildHandlerChain interceptor -> listeners
func (d *dispatcher) buildHandlerChain(entries []listenerEntry, interceptors []Interceptor) Next {
	handler := func(ctx context.Context, event Event) error {
		return d.executeListeners(ctx, event, entries)
	}

	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := handler
		handler = func(ctx context.Context, event Event) error {
			return interceptor(ctx, event, next)
		}
	}
	return handler
}

func (d *dispatcher) executeListeners(ctx context.Context, event Event, entries []listenerEntry) error {
	for _, entry := range entries {
		if entry.async {
			listener := entry.listener
			asyncCtx := context.WithoutCancel(ctx)
			_ = d.pool.Submit(func() {
				if err := listener.Handle(asyncCtx, event); err != nil && !errors.Is(err, ErrStopPropagation) {
					d.logger.ErrorCtx(asyncCtx, "异步监听器执行失败",
						zap.String("event", event.Name()),
						zap.Error(err))
				}
			})
			continue
		}

		if err := entry.listener.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// removeListeners drops the given listener ids of one event
func (d *dispatcher) removeListeners(eventName string, ids ...uint64) {
	if len(ids) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	filtered := make([]listenerEntry, 0, len(entries))
	for _, e := range entries {
		drop := false
		for _, id := range ids {
			if e.id == id {
				drop = true
				break
			}
		}
		if !drop {
			filtered = append(filtered, e)
		}
	}
	d.listeners[eventName] = filtered
}

// Close stops accepting events and waits up to 3s for running async work
func (d *dispatcher) Close() {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return
	}
	if d.pool != nil {
		if err := d.pool.ReleaseTimeout(3 * time.Second); err != nil {
			d.logger.Warn("协程池释放超时", zap.Error(err))
		}
	}
}

// Shutdown implements do.Shutdowner
func (d *dispatcher) Shutdown() {
	d.Close()
}

// ListenerCount number of listeners for an event
func (d *dispatcher) ListenerCount(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[eventName])
}

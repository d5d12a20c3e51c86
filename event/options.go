package event

import "github.com/KOMKZ/go-yogan-tagcache/logger"

// listener entry
type listenerEntry struct {
	id       uint64   // Unique ID (for unsubscribing)
	listener Listener // listener
	priority int      // Priority (the smaller the number, the higher the priority)
	async    bool     // Is asynchronous execution
	once     bool     // Should it be executed only once?
}

// SubscribeOption subscription options
type SubscribeOption func(*listenerEntry)

// WithPriority sets the priority
// The smaller the number, the higher the priority. Default 0
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync marked as asynchronous listener
// Runs on the pool even under synchronous Dispatch; its errors are only logged
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

// WithOnce executes only once and then automatically unsubscribes
func WithOnce() SubscribeOption {
	return func(e *listenerEntry) {
		e.once = true
	}
}

// DispatcherOption Dispatcher configuration options
type DispatcherOption func(*dispatcher)

// WithPoolSize sets the size of the asynchronous goroutine pool
func WithPoolSize(size int) DispatcherOption {
	return func(d *dispatcher) {
		d.poolSize = size
	}
}

// WithSetAllSync forces every listener and DispatchAsync to run synchronously (tests)
func WithSetAllSync(v bool) DispatcherOption {
	return func(d *dispatcher) {
		d.setAllSync = v
	}
}

// WithLogger sets the dispatcher logger
func WithLogger(l *logger.CtxZapLogger) DispatcherOption {
	return func(d *dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

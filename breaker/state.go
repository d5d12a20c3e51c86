package breaker

import (
	"sync"
	"time"
)

// stateManager 状态机，所有方法返回 (from, to)，from != to 表示发生了切换
type stateManager struct {
	mu               sync.Mutex
	state            State
	lastStateChange  time.Time
	failureCount     int64 // closed 状态下的连续失败数
	successCount     int   // half-open 状态下的成功数
	halfOpenAttempts int
	now              func() time.Time
}

func newStateManager() *stateManager {
	return &stateManager{
		state:           StateClosed,
		lastStateChange: time.Now(),
		now:             time.Now,
	}
}

func (sm *stateManager) get() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

func (sm *stateManager) counters() (State, int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state, sm.failureCount
}

// tryAcquire 判断是否放行；打开超时后切换为半开
func (sm *stateManager) tryAcquire(cfg Config) (allowed bool, from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from = sm.state
	switch sm.state {
	case StateClosed:
		return true, from, sm.state

	case StateOpen:
		if sm.now().Sub(sm.lastStateChange) < cfg.Timeout {
			return false, from, sm.state
		}
		sm.transitionTo(StateHalfOpen)
		sm.halfOpenAttempts = 1
		return true, from, sm.state

	case StateHalfOpen:
		if sm.halfOpenAttempts < cfg.HalfOpenRequests {
			sm.halfOpenAttempts++
			return true, from, sm.state
		}
		return false, from, sm.state
	}
	return false, from, sm.state
}

// release 归还半开试探名额（调用被取消）
func (sm *stateManager) release() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state == StateHalfOpen && sm.halfOpenAttempts > 0 {
		sm.halfOpenAttempts--
	}
}

func (sm *stateManager) recordSuccess(cfg Config) (from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from = sm.state
	switch sm.state {
	case StateClosed:
		sm.failureCount = 0
	case StateHalfOpen:
		sm.successCount++
		if sm.successCount >= cfg.HalfOpenRequests {
			sm.transitionTo(StateClosed)
		}
	}
	return from, sm.state
}

func (sm *stateManager) recordFailure() (from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from = sm.state
	switch sm.state {
	case StateClosed:
		sm.failureCount++
	case StateHalfOpen:
		sm.transitionTo(StateOpen)
	}
	return from, sm.state
}

// open 仅在 closed 状态下生效
func (sm *stateManager) open() (from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from = sm.state
	if sm.state == StateClosed {
		sm.transitionTo(StateOpen)
	}
	return from, sm.state
}

func (sm *stateManager) reset() (from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from = sm.state
	sm.transitionTo(StateClosed)
	return from, sm.state
}

// transitionTo 调用方持有锁
func (sm *stateManager) transitionTo(s State) {
	sm.state = s
	sm.lastStateChange = sm.now()
	sm.failureCount = 0
	sm.successCount = 0
	sm.halfOpenAttempts = 0
}

package breaker

import (
	"sync"
	"time"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeRejected
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeFailure:
		return "failure"
	default:
		return "rejected"
	}
}

// Snapshot 滑动窗口统计
type Snapshot struct {
	Name                string  `json:"name"`
	State               State   `json:"-"`
	Requests            int64   `json:"requests"` // successes + failures，不含拒绝
	Successes           int64   `json:"successes"`
	Failures            int64   `json:"failures"`
	Rejections          int64   `json:"rejections"`
	ErrorRate           float64 `json:"error_rate"` // 0.0 - 1.0
	ConsecutiveFailures int64   `json:"consecutive_failures"`
}

type bucket struct {
	epoch      int64 // 桶对应的时间片序号，过期的桶按零值处理
	successes  int64
	failures   int64
	rejections int64
}

// window 环形分桶计数，桶按 now/bucketSize 定位
type window struct {
	mu         sync.Mutex
	buckets    []bucket
	bucketSize time.Duration
	now        func() time.Time
}

func newWindow(size, bucketSize time.Duration) *window {
	n := int(size / bucketSize)
	if n < 1 {
		n = 1
	}
	return &window{
		buckets:    make([]bucket, n),
		bucketSize: bucketSize,
		now:        time.Now,
	}
}

func (w *window) epoch() int64 {
	return w.now().UnixNano() / int64(w.bucketSize)
}

func (w *window) record(o outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.epoch()
	b := &w.buckets[e%int64(len(w.buckets))]
	if b.epoch != e {
		*b = bucket{epoch: e}
	}
	switch o {
	case outcomeSuccess:
		b.successes++
	case outcomeFailure:
		b.failures++
	case outcomeRejected:
		b.rejections++
	}
}

func (w *window) snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	var s Snapshot
	oldest := w.epoch() - int64(len(w.buckets)) + 1
	for _, b := range w.buckets {
		if b.epoch < oldest {
			continue
		}
		s.Successes += b.successes
		s.Failures += b.failures
		s.Rejections += b.rejections
	}
	s.Requests = s.Successes + s.Failures
	if s.Requests > 0 {
		s.ErrorRate = float64(s.Failures) / float64(s.Requests)
	}
	return s
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
}

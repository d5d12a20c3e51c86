package breaker

// 熔断策略名称
const (
	StrategyErrorRate           = "error_rate"
	StrategyConsecutiveFailures = "consecutive_failures"
)

// Strategy 根据窗口统计判断是否打开熔断器
type Strategy interface {
	ShouldOpen(snap Snapshot, cfg Config) bool
	Name() string
}

type errorRateStrategy struct{}

func (errorRateStrategy) Name() string { return StrategyErrorRate }

// ShouldOpen 请求数达到 MinRequests 且错误率 >= 阈值
func (errorRateStrategy) ShouldOpen(snap Snapshot, cfg Config) bool {
	if snap.Requests < int64(cfg.MinRequests) {
		return false
	}
	return snap.ErrorRate >= cfg.ErrorRateThreshold
}

type consecutiveFailuresStrategy struct{}

func (consecutiveFailuresStrategy) Name() string { return StrategyConsecutiveFailures }

func (consecutiveFailuresStrategy) ShouldOpen(snap Snapshot, cfg Config) bool {
	return snap.ConsecutiveFailures >= int64(cfg.ConsecutiveFailures)
}

// StrategyByName 未知名称回退为 error_rate
func StrategyByName(name string) Strategy {
	switch name {
	case StrategyConsecutiveFailures:
		return consecutiveFailuresStrategy{}
	default:
		return errorRateStrategy{}
	}
}

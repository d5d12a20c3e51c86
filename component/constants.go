package component

// 组件名称常量
const (
	ComponentConfig = "config"
	ComponentLogger = "logger"
	ComponentRedis  = "redis"
	ComponentEvent  = "event" // 事件分发组件
	ComponentCache  = "cache" // 标签缓存组件
	ComponentKafka  = "kafka" // 跨实例失效广播
)

// OptionalPrefix 可选依赖前缀
const OptionalPrefix = "optional:"

package config

import (
	"os"
	"strings"
)

// EnvSource 环境变量数据源
//
// 扫描模式下 "__" 表示层级，单个 "_" 保留在 key 中：
// TAGCACHE_CACHE__DEFAULT_TTL -> cache.default_ttl
type EnvSource struct {
	prefix   string // 环境变量前缀，如 "TAGCACHE"
	priority int
	bindings map[string]string // key 映射，如 "redis.main.addrs" -> "REDIS_ADDRS"
}

// NewEnvSource 创建环境变量数据源
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding 添加 key 映射
func (s *EnvSource) AddBinding(key, envKey string) *EnvSource {
	s.bindings[key] = envKey
	return s
}

// Name 数据源名称
func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

// Priority 优先级
func (s *EnvSource) Priority() int {
	return s.priority
}

// Load 加载环境变量配置
func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	// 有明确的 bindings 时只读取 bindings
	if len(s.bindings) > 0 {
		for key, envKey := range s.bindings {
			fullEnvKey := envKey
			if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
				fullEnvKey = s.prefix + "_" + envKey
			}
			if value, ok := os.LookupEnv(fullEnvKey); ok && value != "" {
				result[key] = value
			}
		}
		return result, nil
	}

	if s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		configKey := strings.ToLower(strings.TrimPrefix(name, prefix))
		configKey = strings.ReplaceAll(configKey, "__", ".")
		result[configKey] = value
	}

	return result, nil
}

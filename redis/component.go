package redis

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-tagcache/component"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"go.uber.org/zap"
)

// Component Redis 组件
//
// 实现 component.Component 接口，读取 "redis" 配置段
// 依赖：config, logger
type Component struct {
	manager *Manager
	logger  *logger.CtxZapLogger
}

// NewComponent 创建 Redis 组件
func NewComponent() *Component {
	return &Component{}
}

// Name 组件名称
func (c *Component) Name() string {
	return component.ComponentRedis
}

// DependsOn Redis 组件依赖配置和日志组件
func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

// Init 读取配置并创建 Manager
// 未配置时跳过，GetManager 返回 nil
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	c.logger = logger.GetLogger("redis")

	var configs map[string]Config
	if err := loader.Unmarshal("redis", &configs); err != nil {
		return fmt.Errorf("读取 Redis 配置失败: %w", err)
	}
	if len(configs) == 0 {
		c.logger.DebugCtx(ctx, "未配置 Redis，跳过初始化")
		return nil
	}

	manager, err := NewManager(configs, c.logger)
	if err != nil {
		return fmt.Errorf("创建 Redis 管理器失败: %w", err)
	}
	c.manager = manager
	c.logger.DebugCtx(ctx, "Redis 初始化成功", zap.Int("instances", len(configs)))
	return nil
}

// Start Redis 无需启动
func (c *Component) Start(ctx context.Context) error {
	return nil
}

// Stop 关闭连接
func (c *Component) Stop(ctx context.Context) error {
	if c.manager != nil {
		if err := c.manager.Close(); err != nil {
			return fmt.Errorf("关闭 Redis 连接失败: %w", err)
		}
	}
	return nil
}

// GetManager 获取 Redis 管理器
func (c *Component) GetManager() *Manager {
	return c.manager
}

// GetHealthChecker 获取健康检查器
func (c *Component) GetHealthChecker() component.HealthChecker {
	if c.manager == nil {
		return nil
	}
	return NewHealthChecker(c.manager)
}

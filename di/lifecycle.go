package di

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/kafka"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/KOMKZ/go-yogan-tagcache/redis"
)

// StartCoreComponents 触发核心组件初始化
// 组件的 Init/Start 逻辑在各自的 Provider 中实现，这里只负责触发懒加载
func StartCoreComponents(ctx context.Context, injector do.Injector, log *logger.CtxZapLogger) error {
	if redisMgr, err := do.Invoke[*redis.Manager](injector); err != nil {
		return fmt.Errorf("redis 初始化失败: %w", err)
	} else if redisMgr != nil {
		log.DebugCtx(ctx, "✅ Redis 组件已就绪", zap.Strings("instances", redisMgr.Names()))
	}

	if bus, err := do.Invoke[*kafka.Bus](injector); err != nil {
		return fmt.Errorf("kafka 初始化失败: %w", err)
	} else if bus != nil {
		log.DebugCtx(ctx, "✅ Kafka 失效广播已就绪",
			zap.String("topic", bus.Topic()), zap.String("origin", bus.Origin()))
	}

	comp, err := do.Invoke[*cache.Component](injector)
	if err != nil {
		return fmt.Errorf("cache 初始化失败: %w", err)
	}
	if comp.Facade() == nil {
		log.InfoCtx(ctx, "cache 未启用")
		return nil
	}
	log.DebugCtx(ctx, "✅ Cache 组件已就绪",
		zap.String("store", comp.Facade().Store().Name()),
		zap.Bool("tags", comp.Facade().SupportsTags()))
	return nil
}

package di

import (
	"github.com/samber/do/v2"

	"github.com/KOMKZ/go-yogan-tagcache/config"
)

// RegisterCoreProviders registers all cache stack providers to the injector
// Register by dependency level, lazy loading mode
func RegisterCoreProviders(injector do.Injector, opts config.ProvideLoaderOptions, appName string) {
	// ═══════════════════════════════════════════════════════════
	// Layer 0: Config (no dependencies)
	// ═══════════════════════════════════════════════════════════
	do.Provide(injector, config.ProvideLoader(opts))

	// ═══════════════════════════════════════════════════════════
	// Layer 1: Logger and metrics (depend on Config)
	// ═══════════════════════════════════════════════════════════
	do.Provide(injector, ProvideLoggerManager)
	do.Provide(injector, ProvideCtxLogger(appName))
	do.Provide(injector, ProvideMeterProvider)

	// ═══════════════════════════════════════════════════════════
	// Layer 2: Infrastructure components (lazy loading)
	// ═══════════════════════════════════════════════════════════
	do.Provide(injector, ProvideRedisManager)
	do.Provide(injector, ProvideEventDispatcher)
	do.Provide(injector, ProvideInvalidationBus)

	// ═══════════════════════════════════════════════════════════
	// Layer 3: Cache (lazy loading)
	// ═══════════════════════════════════════════════════════════
	do.Provide(injector, ProvideCacheComponent)
	do.Provide(injector, ProvideFacade)
	do.Provide(injector, ProvideCollector)
	do.Provide(injector, ProvideKeyGenerator)

	// ═══════════════════════════════════════════════════════════
	// Layer 4: Health (aggregates cache and redis)
	// ═══════════════════════════════════════════════════════════
	do.Provide(injector, ProvideHealthAggregator(appName))
}

package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager holds named Redis clients (standalone or cluster)
type Manager struct {
	clients map[string]redis.UniversalClient
	configs map[string]Config
	logger  *logger.CtxZapLogger
	metrics *Metrics
	mu      sync.RWMutex
}

// NewManager creates and pings every configured instance
// log must not be nil
func NewManager(configs map[string]Config, log *logger.CtxZapLogger) (*Manager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ctx := context.Background()
	m := &Manager{
		clients: make(map[string]redis.UniversalClient),
		configs: make(map[string]Config),
		logger:  log,
	}

	for name, cfg := range configs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("invalid config for %s: %w", name, err)
		}

		client := cfg.newClient()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = m.Close()
			return nil, fmt.Errorf("failed to create client %s: ping failed: %w", name, err)
		}

		m.clients[name] = client
		m.configs[name] = cfg

		m.logger.DebugCtx(ctx, "Redis connection successful",
			zap.String("name", name),
			zap.String("mode", cfg.Mode),
			zap.Strings("addrs", cfg.Addrs))
	}

	return m, nil
}

// Client returns the named client, nil when absent
func (m *Manager) Client(name string) redis.UniversalClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[name]
}

// Names returns the sorted instance names
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping checks all connections
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, client := range m.clients {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping %s failed: %w", name, err)
		}
	}
	return nil
}

// Close closes all connections, errors are logged
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.ErrorCtx(ctx, "failed to close Redis connection",
				zap.String("name", name),
				zap.Error(err))
			continue
		}
		m.logger.DebugCtx(ctx, "Redis connection closed", zap.String("name", name))
	}
	m.clients = make(map[string]redis.UniversalClient)
	return nil
}

// Shutdown implements do.Shutdowner
func (m *Manager) Shutdown() error {
	return m.Close()
}

// SetMetrics adds the command hook to instances with metrics enabled
// Safe to call multiple times
func (m *Manager) SetMetrics(metrics *Metrics) {
	if metrics == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metrics != nil {
		return
	}
	m.metrics = metrics

	for name, client := range m.clients {
		if !m.configs[name].Metrics {
			continue
		}
		client.AddHook(newMetricsHook(metrics, name))
		m.logger.DebugCtx(context.Background(), "Redis Metrics Hook added", zap.String("instance", name))
	}
}

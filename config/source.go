package config

// ConfigSource interface for configuration data sources
// All configuration sources (files, environment variables, command-line flags) implement this interface
type ConfigSource interface {
	// Name data source name (for logs and debugging)
	Name() string

	// Priority (higher value wins)
	// Suggested value:
	// - Configuration file (config.yaml): 10
	// - Environment configuration file (dev.yaml): 20
	// - Environment variable: 50
	// - Command line flag: 100
	Priority() int

	// Load returns flattened data keyed by dotted path, such as "cache.default_ttl"
	Load() (map[string]interface{}, error)
}

package component

// ConfigLoader configuration loader interface
//
// Components read their own configuration section through this interface
type ConfigLoader interface {
	// Get returns the raw value of a key (e.g. "redis.main.addrs")
	Get(key string) interface{}

	// Unmarshal decodes a configuration section into a struct
	//
	// Example:
	//   var cfg cache.Config
	//   if err := loader.Unmarshal("cache", &cfg); err != nil {
	//       return err
	//   }
	Unmarshal(key string, v interface{}) error

	// GetString Get string configuration
	GetString(key string) string

	// GetInt Get integer configuration
	GetInt(key string) int

	// GetBool Get boolean configuration
	GetBool(key string) bool

	// IsSet Check if the configuration item exists
	IsSet(key string) bool
}

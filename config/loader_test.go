package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
cache:
  enabled: true
  default_ttl: 180s
  key_version: v1
  stores:
    main:
      type: redis
      instance: main
      key_prefix: "tasks:"
redis:
  main:
    addrs: ["127.0.0.1:6379"]
    db: 0
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_FileSource(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader()
	loader.AddSource(NewFileSource(writeFile(t, dir, "config.yaml", baseYAML), 10))

	require.NoError(t, loader.Load())

	assert.True(t, loader.GetBool("cache.enabled"))
	assert.Equal(t, "redis", loader.GetString("cache.stores.main.type"))
	assert.True(t, loader.IsSet("redis.main.addrs"))
	assert.False(t, loader.IsSet("cache.missing"))
	assert.Len(t, loader.GetLoadedFiles(), 1)
}

func TestLoader_MissingFileIsEmpty(t *testing.T) {
	loader := NewLoader()
	loader.AddSource(NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), 10))

	require.NoError(t, loader.Load())
	assert.Empty(t, loader.AllSettings())
}

func TestLoader_PriorityOverride(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader()
	// added out of order on purpose
	loader.AddSource(NewFileSource(writeFile(t, dir, "dev.yaml", "cache:\n  default_ttl: 60s\n"), 20))
	loader.AddSource(NewFileSource(writeFile(t, dir, "config.yaml", baseYAML), 10))

	require.NoError(t, loader.Load())

	assert.Equal(t, "60s", loader.GetString("cache.default_ttl"))
	assert.Equal(t, "v1", loader.GetString("cache.key_version"), "lower priority keys survive")
}

func TestLoader_Unmarshal(t *testing.T) {
	type storeCfg struct {
		Type      string `mapstructure:"type"`
		KeyPrefix string `mapstructure:"key_prefix"`
	}
	type cacheCfg struct {
		Enabled    bool                `mapstructure:"enabled"`
		DefaultTTL time.Duration       `mapstructure:"default_ttl"`
		Stores     map[string]storeCfg `mapstructure:"stores"`
	}

	loader := NewLoader()
	loader.AddSource(NewFileSource(writeFile(t, t.TempDir(), "config.yaml", baseYAML), 10))
	require.NoError(t, loader.Load())

	var cfg cacheCfg
	require.NoError(t, loader.Unmarshal("cache", &cfg))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 180*time.Second, cfg.DefaultTTL)
	assert.Equal(t, "tasks:", cfg.Stores["main"].KeyPrefix)
}

func TestEnvSource_Scan(t *testing.T) {
	t.Setenv("TAGCACHE_CACHE__DEFAULT_TTL", "90s")
	t.Setenv("TAGCACHE_CACHE__STORES__MAIN__TYPE", "memory")

	data, err := NewEnvSource("TAGCACHE", 50).Load()
	require.NoError(t, err)

	assert.Equal(t, "90s", data["cache.default_ttl"])
	assert.Equal(t, "memory", data["cache.stores.main.type"])
}

func TestEnvSource_Bindings(t *testing.T) {
	t.Setenv("TAGCACHE_REDIS_ADDR", "10.0.0.1:6379")

	src := NewEnvSource("TAGCACHE", 50).AddBinding("redis.main.addrs", "REDIS_ADDR")
	data, err := src.Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"redis.main.addrs": "10.0.0.1:6379"}, data)
}

func TestFlagSource_OnlyChanged(t *testing.T) {
	fs := pflag.NewFlagSet("cachectl", pflag.ContinueOnError)
	fs.String("store", "memory", "")
	fs.StringSlice("redis-addr", nil, "")
	require.NoError(t, fs.Parse([]string{"--redis-addr", "a:1,b:2"}))

	data, err := NewFlagSource(fs, map[string]string{
		"cache.store":      "store",
		"redis.main.addrs": "redis-addr",
	}, 100).Load()
	require.NoError(t, err)

	assert.NotContains(t, data, "cache.store", "defaults do not override files")
	assert.Equal(t, []string{"a:1", "b:2"}, data["redis.main.addrs"])
}

func TestLoaderBuilder_Layers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", baseYAML)
	writeFile(t, dir, "test.yaml", "cache:\n  key_version: v2\n")
	t.Setenv("APP_ENV", "test")
	t.Setenv("TAGCACHE_CACHE__DEFAULT_TTL", "30s")

	fs := pflag.NewFlagSet("cachectl", pflag.ContinueOnError)
	fs.String("store", "", "")
	require.NoError(t, fs.Parse([]string{"--store", "local"}))

	loader, err := NewLoaderBuilder().
		WithConfigPath(dir).
		WithEnvPrefix("TAGCACHE").
		WithFlags(fs, map[string]string{"cache.store": "store"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "v2", loader.GetString("cache.key_version"))
	assert.Equal(t, "30s", loader.GetString("cache.default_ttl"))
	assert.Equal(t, "local", loader.GetString("cache.store"))
	assert.Equal(t, "redis", loader.GetString("cache.stores.main.type"))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	assert.Equal(t, "dev", GetEnv())

	t.Setenv("ENV", "staging")
	assert.Equal(t, "staging", GetEnv())

	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, "prod", GetEnv())
}

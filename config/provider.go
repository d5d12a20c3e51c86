package config

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/pflag"
)

// ProvideLoaderOptions 创建 Loader 的选项
type ProvideLoaderOptions struct {
	ConfigPath   string            // 配置目录路径
	ConfigFile   string            // 指定配置文件
	ConfigPrefix string            // 环境变量前缀
	Flags        *pflag.FlagSet    // 命令行参数
	FlagBindings map[string]string // 配置 key -> flag 名称
}

// ProvideLoader 创建 Config Loader Provider
// Config 是最底层组件，无任何依赖
//
// 使用示例：
//
//	do.Provide(injector, config.ProvideLoader(config.ProvideLoaderOptions{
//	    ConfigFile:   "configs/cache.yaml",
//	    ConfigPrefix: "TAGCACHE",
//	}))
//	loader := do.MustInvoke[*config.Loader](injector)
func ProvideLoader(opts ProvideLoaderOptions) func(do.Injector) (*Loader, error) {
	return func(i do.Injector) (*Loader, error) {
		loader, err := NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithConfigFile(opts.ConfigFile).
			WithEnvPrefix(opts.ConfigPrefix).
			WithFlags(opts.Flags, opts.FlagBindings).
			Build()
		if err != nil {
			return nil, fmt.Errorf("config loader build failed: %w", err)
		}
		return loader, nil
	}
}

// ProvideLoaderValue 直接注册已创建的 Loader（用于测试或特殊场景）
func ProvideLoaderValue(loader *Loader) func(do.Injector) (*Loader, error) {
	return func(i do.Injector) (*Loader, error) {
		return loader, nil
	}
}

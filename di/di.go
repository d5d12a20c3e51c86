// Package di provides dependency injection utilities based on samber/do.
package di

import "github.com/samber/do/v2"

// Injector 类型别名
type Injector = do.Injector

// RootScope 类型别名
type RootScope = do.RootScope

// NewInjector 创建新的根注入器
var NewInjector = do.New

// NewWithOpts 使用选项创建新的根注入器
var NewWithOpts = do.NewWithOpts

// 泛型函数需要通过 do 包名调用，例如获取已启动的缓存门面:
//
//	injector := di.NewInjector()
//	di.RegisterCoreProviders(injector, config.ProvideLoaderOptions{ConfigFile: "configs/cache.yaml"}, "tagcache")
//	facade := do.MustInvoke[*cache.Facade](injector)

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/KOMKZ/go-yogan-tagcache/di"
)

const (
	appName          = "cachectl"
	defaultEnvPrefix = "TAGCACHE"
	shutdownTimeout  = 5 * time.Second
)

// flag -> 配置 key 绑定，命令行显式设置的值覆盖配置文件和环境变量
var flagBindings = map[string]string{
	"cache.store": "store",
	"http.addr":   "addr",
}

type rootOptions struct {
	configDir string
	config    string
	envPrefix string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Tag cache maintenance tool",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configDir, "config-dir", "./configs", "配置目录（config.yaml 与 <env>.yaml）")
	pf.StringVarP(&opts.config, "config", "c", "", "显式配置文件，优先级高于配置目录")
	pf.StringVar(&opts.envPrefix, "env-prefix", defaultEnvPrefix, "环境变量前缀")
	pf.String("store", "", "覆盖 cache.store")

	cmd.AddCommand(
		newStatsCmd(opts),
		newFlushCmd(opts),
		newKeyCmd(),
		newServeCmd(opts),
	)
	return cmd
}

// newApp 按命令行选项创建应用，flags 绑定到配置 key
func newApp(cmd *cobra.Command, opts *rootOptions, extra ...di.Option) *di.App {
	appOpts := []di.Option{
		di.WithName(appName),
		di.WithConfigPath(opts.configDir),
		di.WithConfigFile(opts.config),
		di.WithConfigPrefix(opts.envPrefix),
		di.WithFlags(cmd.Flags(), flagBindings),
	}
	return di.New(append(appOpts, extra...)...)
}

// runWithApp Setup 后执行 fn，结束时关闭应用
func runWithApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, app *di.App) error) error {
	app := newApp(cmd, opts)
	if err := app.Setup(cmd.Context()); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = app.Shutdown(ctx)
	}()
	return fn(cmd.Context(), app)
}

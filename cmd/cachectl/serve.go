package main

import (
	"context"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/KOMKZ/go-yogan-tagcache/cachehttp"
	"github.com/KOMKZ/go-yogan-tagcache/di"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动缓存管理 HTTP 接口（/cache/*, /metrics, /health），收到 SIGINT/SIGTERM 后优雅退出",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var srv *cachehttp.Server
			app := newApp(cmd, opts,
				di.WithOnReady(func(ctx context.Context, app *di.App) error {
					s, err := newServer(app)
					if err != nil {
						return err
					}
					srv = s
					return srv.Start()
				}),
				di.WithOnShutdown(func(ctx context.Context) error {
					if srv == nil {
						return nil
					}
					return srv.Shutdown(ctx)
				}),
			)
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "覆盖 http.addr")
	return cmd
}

// newServer 读取 http 配置段并创建管理接口服务
func newServer(app *di.App) (*cachehttp.Server, error) {
	cfg := cachehttp.DefaultConfig()
	if err := app.ConfigLoader().Unmarshal("http", &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := app.Facade()
	if err != nil {
		return nil, err
	}
	collector, err := app.Collector()
	if err != nil {
		return nil, err
	}
	agg, err := app.Health()
	if err != nil {
		return nil, err
	}

	log := do.MustInvoke[*logger.Manager](app.Injector()).GetLogger("cachehttp")
	engine := cachehttp.NewEngine(cfg, f, collector, log, cachehttp.WithHealth(agg))
	return cachehttp.NewServer(cfg.Addr, engine, log), nil
}

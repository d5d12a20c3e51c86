package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/KOMKZ/go-yogan-tagcache/di"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "打印缓存统计快照（JSON）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, app *di.App) error {
				collector, err := app.Collector()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(collector.Export(ctx))
			})
		},
	}
}

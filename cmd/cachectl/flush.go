package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/di"
)

func newFlushCmd(opts *rootOptions) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "按标签刷新缓存，不带 --tag 时整体刷新",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, app *di.App) error {
				f, err := app.Facade()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if len(tags) == 0 {
					if !f.Flush(ctx) {
						return cache.ErrFlush
					}
					fmt.Fprintf(out, "flushed all entries in store %s\n", f.Store().Name())
					return nil
				}

				if !f.FlushTags(ctx, tags...) {
					return cache.ErrFlush.WithMsgf("刷新标签失败: %s", strings.Join(tags, ","))
				}
				if !f.SupportsTags() {
					fmt.Fprintf(out, "store %s has no tag index, flushed all entries\n", f.Store().Name())
					return nil
				}
				fmt.Fprintf(out, "flushed tags: %s\n", strings.Join(tags, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "要刷新的标签，可重复")
	return cmd
}

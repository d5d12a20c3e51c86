package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KOMKZ/go-yogan-tagcache/cachekey"
)

type keyOptions struct {
	version   string
	namespace string
	entity    string
	filters   []string
	page      int
	perPage   int
	sort      string
}

func newKeyCmd() *cobra.Command {
	opts := &keyOptions{}
	cmd := &cobra.Command{
		Use:   "key",
		Short: "生成缓存 key",
		Example: `  cachectl key --namespace tasks --filter status=todo
  cachectl key --namespace tasks --entity 42 --filter tags='["a","b"]' --page 2 --per-page 20 --sort created_at:desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := buildKey(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.version, "key-version", cachekey.DefaultVersion, "key 版本段")
	f.StringVarP(&opts.namespace, "namespace", "n", "", "命名空间（必填）")
	f.StringVarP(&opts.entity, "entity", "e", "", "实体 ID")
	f.StringArrayVarP(&opts.filters, "filter", "f", nil, "过滤条件 k=v，值按 JSON 解析失败时作为字符串，可重复")
	f.IntVar(&opts.page, "page", 0, "页码（>0 时追加分页段）")
	f.IntVar(&opts.perPage, "per-page", 20, "每页条数")
	f.StringVar(&opts.sort, "sort", "", "排序 field[:asc|desc]")
	_ = cmd.MarkFlagRequired("namespace")
	return cmd
}

func buildKey(opts *keyOptions) (string, error) {
	filters, err := parseFilters(opts.filters)
	if err != nil {
		return "", err
	}

	key, err := cachekey.New(opts.version).BuildKey(opts.namespace, opts.entity, filters)
	if err != nil {
		return "", err
	}
	if opts.page > 0 {
		key = cachekey.WithPage(key, opts.page, opts.perPage)
	}
	if opts.sort != "" {
		field, dir, _ := strings.Cut(opts.sort, ":")
		key = cachekey.WithSort(key, field, dir)
	}
	return key, nil
}

// parseFilters k=v 列表转为过滤条件；v 是合法 JSON 时按 JSON 解析（数字、布尔、数组）
func parseFilters(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]any, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", kv)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			filters[k] = parsed
		} else {
			filters[k] = v
		}
	}
	return filters, nil
}

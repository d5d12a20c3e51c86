// Package cachekey derives deterministic cache keys from a namespace, an
// entity id and an optional filter map.
//
// Key layout:
//
//	<version>:<namespace>[:<entity>][:filters:<md5 of canonical filters>]
package cachekey

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// DefaultVersion 全局缓存格式版本，修改后所有旧 key 失效
const DefaultVersion = "v1"

const (
	sep           = ":"
	filterSegment = "filters"
)

// Generator 缓存 key 生成器（无状态，可并发使用）
type Generator struct {
	version string
}

// New 创建 Generator，version 为空时使用 DefaultVersion
func New(version string) *Generator {
	if version == "" {
		version = DefaultVersion
	}
	return &Generator{version: version}
}

// VersionPrefix 返回嵌入每个 key 的版本前缀
func (g *Generator) VersionPrefix() string {
	return g.version
}

// BuildKey 构建缓存 key
// entityID 为空时省略；filters 去掉编码后为 null 或空字符串的条目后为空时不追加指纹段
func (g *Generator) BuildKey(namespace, entityID string, filters map[string]any) (string, error) {
	if namespace == "" {
		return "", ErrNamespace
	}

	var b strings.Builder
	b.WriteString(g.version)
	b.WriteString(sep)
	b.WriteString(namespace)
	if entityID != "" {
		b.WriteString(sep)
		b.WriteString(entityID)
	}

	normalized, err := normalizeFilters(filters)
	if err != nil {
		return "", err
	}
	if len(normalized) > 0 {
		fp, err := fingerprint(normalized)
		if err != nil {
			return "", err
		}
		b.WriteString(sep)
		b.WriteString(filterSegment)
		b.WriteString(sep)
		b.WriteString(fp)
	}
	return b.String(), nil
}

// BuildFingerprint 计算过滤条件指纹（32 位十六进制 MD5）
// 与插入顺序无关，任一值变化都会改变结果
func (g *Generator) BuildFingerprint(filters map[string]any) (string, error) {
	normalized, err := normalizeFilters(filters)
	if err != nil {
		return "", err
	}
	return fingerprint(normalized)
}

func fingerprint(normalized map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, normalized); err != nil {
		return "", ErrFingerprint.Wrap(err)
	}
	sum := md5.Sum(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// WithPage 追加分页段：<base>:page:N:per_page:M
func WithPage(base string, page, perPage int) string {
	return base + sep + "page" + sep + strconv.Itoa(page) + sep + "per_page" + sep + strconv.Itoa(perPage)
}

// WithSort 追加排序段：<base>:sort:<field>:<dir>，dir 为空时为 asc
func WithSort(base, field, dir string) string {
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir == "" {
		dir = "asc"
	}
	return base + sep + "sort" + sep + field + sep + dir
}

// normalizeFilters JSON 往返后去掉值为 null 或空字符串的顶层条目
// typed nil 指针、自定义字符串类型的空值与 nil、"" 等价
func normalizeFilters(filters map[string]any) (map[string]any, error) {
	generic, err := roundTrip(filters)
	if err != nil {
		return nil, err
	}
	m, _ := generic.(map[string]any)
	for k, v := range m {
		if v == nil {
			delete(m, k)
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			delete(m, k)
		}
	}
	return m, nil
}

// roundTrip 把任意 Go 值归一为 map[string]any / []any / json.Number
func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ErrFingerprint.Wrap(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, ErrFingerprint.Wrap(err)
	}
	return generic, nil
}

// Canonicalize 生成确定性的 JSON 表示
//
// 先经 JSON 往返把任意 Go 值（struct、typed map、各种数字类型）归一为
// map[string]any / []any / json.Number，再递归排序：
//   - map 按 key 排序
//   - 数组按元素的规范编码排序（过滤条件中的数组按集合处理）
func Canonicalize(v any) ([]byte, error) {
	generic, err := roundTrip(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, ErrFingerprint.Wrap(err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		items := make([][]byte, len(val))
		for i, item := range val {
			var ib bytes.Buffer
			if err := writeCanonical(&ib, item); err != nil {
				return err
			}
			items[i] = ib.Bytes()
		}
		sort.Slice(items, func(i, j int) bool {
			return bytes.Compare(items[i], items[j]) < 0
		})

		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(item)
		}
		buf.WriteByte(']')
		return nil

	case json.Number:
		buf.WriteString(normalizeNumber(val))
		return nil

	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// normalizeNumber 1、1.0、1e0 统一为同一表示
func normalizeNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return n.String()
}

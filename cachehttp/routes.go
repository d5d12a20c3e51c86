package cachehttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/health"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
)

const maxKeysLimit = 1000

// Handler 缓存管理接口
type Handler struct {
	facade    *cache.Facade
	collector *cachemetrics.Collector
	logger    logger.CtxLogger
}

// NewHandler creates the admin handler; log may be nil
func NewHandler(f *cache.Facade, c *cachemetrics.Collector, log logger.CtxLogger) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{facade: f, collector: c, logger: log}
}

// Register 注册 /cache 路由组
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/cache")
	g.GET("/metrics", Wrap(h.logger, h.metrics))
	g.GET("/keys", Wrap(h.logger, h.keys))
	g.POST("/flush", Wrap(h.logger, h.flush))
}

type metricsRequest struct{}

func (h *Handler) metrics(c *gin.Context, _ *metricsRequest) (*cachemetrics.Snapshot, error) {
	snap := h.collector.Export(c.Request.Context())
	return &snap, nil
}

// KeysRequest GET /cache/keys 查询参数
type KeysRequest struct {
	Limit int `form:"limit"`
}

// Validate limit 为 0 时使用默认值
func (r *KeysRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Limit, validation.Min(0), validation.Max(maxKeysLimit)),
	)
}

// KeyEntry 单个 key 的统计
type KeyEntry struct {
	Key string `json:"key"`
	cachemetrics.KeyStats
}

// KeysResponse GET /cache/keys 响应
type KeysResponse struct {
	Keys []KeyEntry `json:"keys"`
}

func (h *Handler) keys(c *gin.Context, req *KeysRequest) (*KeysResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = cachemetrics.DefaultTopKeys
	}
	stats := h.collector.KeyStats(c.Request.Context(), limit)
	resp := &KeysResponse{Keys: make([]KeyEntry, 0, len(stats))}
	for _, st := range stats {
		resp.Keys = append(resp.Keys, KeyEntry{Key: st.Key, KeyStats: st})
	}
	return resp, nil
}

// FlushRequest POST /cache/flush 请求体，tags 为空时整体刷新
type FlushRequest struct {
	Tags []string `json:"tags"`
}

// Validate 每个标签非空且不超过 128 字符
func (r *FlushRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, 128))),
	)
}

// FlushResponse POST /cache/flush 响应
type FlushResponse struct {
	Tags []string `json:"tags"`
	// Degraded 存储不支持标签，标签刷新降级为整体刷新
	Degraded bool `json:"degraded"`
}

func (h *Handler) flush(c *gin.Context, req *FlushRequest) (*FlushResponse, error) {
	ctx := c.Request.Context()
	resp := &FlushResponse{Tags: req.Tags}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}

	if len(req.Tags) == 0 {
		if !h.facade.Flush(ctx) {
			return nil, ErrFlushFailed
		}
		return resp, nil
	}

	if !h.facade.FlushTags(ctx, req.Tags...) {
		return nil, ErrFlushFailed.WithData("tags", req.Tags)
	}
	resp.Degraded = !h.facade.SupportsTags()
	return resp, nil
}

// HealthHandler 返回聚合健康检查结果
// degraded 仍返回 200，unhealthy 返回 503
func HealthHandler(agg *health.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := agg.Check(c.Request.Context())
		status := http.StatusOK
		if !resp.Serving() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

package cachehttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-tagcache/cache"
	"github.com/KOMKZ/go-yogan-tagcache/cachemetrics"
	"github.com/KOMKZ/go-yogan-tagcache/logger"
	"github.com/KOMKZ/go-yogan-tagcache/store"
)

type fixture struct {
	engine    *gin.Engine
	facade    *cache.Facade
	collector *cachemetrics.Collector
	log       *logger.TestCtxLogger
}

func testConfig() Config {
	return Config{Addr: "127.0.0.1:0", Mode: gin.TestMode, RequestLog: true}
}

func newFixture(t *testing.T, data store.Store) *fixture {
	t.Helper()
	metricsStore := store.NewMemoryStore("metrics", 0, store.WithCleanupInterval(0))
	t.Cleanup(func() {
		_ = metricsStore.Close()
		_ = data.Close()
	})

	collector := cachemetrics.New(metricsStore, cachemetrics.WithDataStore(data))
	f := cache.NewFacade(data, cache.WithRecorder(collector))
	log := logger.NewTestCtxLogger()
	return &fixture{
		engine:    NewEngine(testConfig(), f, collector, log),
		facade:    f,
		collector: collector,
		log:       log,
	}
}

func newMemoryFixture(t *testing.T) *fixture {
	return newFixture(t, store.NewMemoryStore("memory", 0, store.WithCleanupInterval(0)))
}

func newRedisFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return newFixture(t, store.NewRedisStore("redis", client, "tasks:")), mr
}

func (fx *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)

	var resp map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newMemoryFixture(t)
	ctx := context.Background()
	fx.facade.Put(ctx, "v1:tasks:1", "a", time.Minute, "tasks")
	var s string
	fx.facade.Get(ctx, "v1:tasks:1", &s, "tasks")
	fx.facade.Get(ctx, "v1:tasks:2", &s, "tasks")

	w, resp := fx.do(t, http.MethodGet, "/cache/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, resp["code"])
	data := resp["data"].(map[string]any)
	overall := data["overall"].(map[string]any)
	assert.EqualValues(t, 1, overall["hits"])
	assert.EqualValues(t, 1, overall["misses"])
	assert.EqualValues(t, 50, overall["hit_rate"])
	assert.Contains(t, data, "timestamp")
	assert.Contains(t, data["tags"].(map[string]any), "tasks")
	assert.Contains(t, data["top_keys"].(map[string]any), "v1:tasks:1")
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))
}

func TestKeysEndpoint(t *testing.T) {
	fx := newMemoryFixture(t)
	ctx := context.Background()
	var s string
	fx.facade.Put(ctx, "v1:hot", "x", time.Minute)
	for i := 0; i < 3; i++ {
		fx.facade.Get(ctx, "v1:hot", &s)
	}
	fx.facade.Get(ctx, "v1:cold", &s)

	w, resp := fx.do(t, http.MethodGet, "/cache/keys?limit=1", "")

	require.Equal(t, http.StatusOK, w.Code)
	keys := resp["data"].(map[string]any)["keys"].([]any)
	require.Len(t, keys, 1)
	entry := keys[0].(map[string]any)
	assert.Equal(t, "v1:hot", entry["key"])
	assert.EqualValues(t, 3, entry["hits"])
	assert.EqualValues(t, 0, entry["misses"])
}

func TestKeysEndpoint_InvalidLimit(t *testing.T) {
	fx := newMemoryFixture(t)

	w, resp := fx.do(t, http.MethodGet, "/cache/keys?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, ErrValidation.Code(), resp["code"])
	fields := resp["data"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "Limit")

	w, resp = fx.do(t, http.MethodGet, "/cache/keys?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, ErrBadRequest.Code(), resp["code"])
}

func TestFlushEndpoint_Tags(t *testing.T) {
	fx, mr := newRedisFixture(t)
	ctx := context.Background()
	fx.facade.Put(ctx, "v1:tasks:list", "a", time.Minute, cache.TaskTags(7)...)
	fx.facade.Put(ctx, "v1:static:nav", "b", time.Minute, cache.StaticTags()...)

	w, resp := fx.do(t, http.MethodPost, "/cache/flush", `{"tags":["user:7"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, false, data["degraded"])
	assert.Equal(t, []any{"user:7"}, data["tags"])
	assert.False(t, mr.Exists("tasks:v1:tasks:list"))
	assert.True(t, mr.Exists("tasks:v1:static:nav"))
}

func TestFlushEndpoint_DegradedOnFlatStore(t *testing.T) {
	fx := newMemoryFixture(t)
	ctx := context.Background()
	fx.facade.Put(ctx, "v1:static:nav", "b", time.Minute, cache.StaticTags()...)

	w, resp := fx.do(t, http.MethodPost, "/cache/flush", `{"tags":["user:7"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["data"].(map[string]any)["degraded"])
	assert.False(t, fx.facade.Has(ctx, "v1:static:nav"))
}

func TestFlushEndpoint_Full(t *testing.T) {
	fx := newMemoryFixture(t)
	ctx := context.Background()
	fx.facade.Put(ctx, "v1:a", 1, time.Minute)

	w, _ := fx.do(t, http.MethodPost, "/cache/flush", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, fx.facade.Has(ctx, "v1:a"))

	fx.facade.Put(ctx, "v1:a", 1, time.Minute)
	w, _ = fx.do(t, http.MethodPost, "/cache/flush", `{"tags":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, fx.facade.Has(ctx, "v1:a"))
}

func TestFlushEndpoint_ChunkedBodyFlushesOnlyTags(t *testing.T) {
	fx, mr := newRedisFixture(t)
	ctx := context.Background()
	fx.facade.Put(ctx, "v1:tasks:list", "a", time.Minute, cache.TaskTags(7)...)
	fx.facade.Put(ctx, "v1:static:nav", "b", time.Minute, cache.StaticTags()...)

	// 非 strings.Reader 的 body 不带长度，ContentLength 为 -1
	body := io.MultiReader(strings.NewReader(`{"tags":["user:7"]}`))
	req := httptest.NewRequest(http.MethodPost, "/cache/flush", body)
	req.Header.Set("Content-Type", "application/json")
	req.TransferEncoding = []string{"chunked"}
	require.EqualValues(t, -1, req.ContentLength)
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mr.Exists("tasks:v1:tasks:list"))
	assert.True(t, mr.Exists("tasks:v1:static:nav"))
}

func TestFlushEndpoint_ChunkedEmptyBodyFlushesAll(t *testing.T) {
	fx := newMemoryFixture(t)
	ctx := context.Background()
	fx.facade.Put(ctx, "v1:a", 1, time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/cache/flush", io.MultiReader())
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, fx.facade.Has(ctx, "v1:a"))
}

func TestFlushEndpoint_Validation(t *testing.T) {
	fx := newMemoryFixture(t)

	w, resp := fx.do(t, http.MethodPost, "/cache/flush", `{"tags":["ok",""]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, ErrValidation.Code(), resp["code"])
	assert.True(t, fx.log.HasLog("WARN", "cache admin request rejected"))

	w, resp = fx.do(t, http.MethodPost, "/cache/flush", `{"tags":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, ErrBadRequest.Code(), resp["code"])
}

func TestFlushEndpoint_StoreFailure(t *testing.T) {
	fx, mr := newRedisFixture(t)
	mr.SetError("ERR injected failure")

	w, resp := fx.do(t, http.MethodPost, "/cache/flush", `{"tags":["user:7"]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, ErrFlushFailed.Code(), resp["code"])
	assert.True(t, fx.log.HasLog("ERROR", "cache admin request failed"))
}

func TestPrometheusEndpoint(t *testing.T) {
	fx := newMemoryFixture(t)
	var s string
	fx.facade.Get(context.Background(), "v1:missing", &s)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "tagcache_misses 1")
	assert.Contains(t, body, "tagcache_hit_rate_percent 0")
	assert.Contains(t, body, "go_goroutines")
}

func TestNoRouteAndNoMethod(t *testing.T) {
	fx := newMemoryFixture(t)

	w, resp := fx.do(t, http.MethodGet, "/cache/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 404, resp["code"])

	w, resp = fx.do(t, http.MethodDelete, "/cache/metrics", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.EqualValues(t, 405, resp["code"])
}

func TestTraceIDPropagation(t *testing.T) {
	fx := newMemoryFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/cache/keys", nil)
	req.Header.Set(TraceIDHeader, "trace-abc")
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", w.Header().Get(TraceIDHeader))
	logs := fx.log.Logs()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, "HTTP 请求", last.Message)
	assert.Equal(t, "trace-abc", last.TraceID)
	assert.EqualValues(t, http.StatusOK, last.Fields["status"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewTestCtxLogger()
	engine := gin.New()
	engine.Use(Recovery(log))
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "boom")
	assert.True(t, log.HasLog("ERROR", "Panic recovered"))
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultConfig().Addr, cfg.Addr)
	assert.Equal(t, gin.ReleaseMode, cfg.Mode)
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestServer_StartShutdown(t *testing.T) {
	fx := newMemoryFixture(t)
	srv := NewServer("127.0.0.1:0", fx.engine, fx.log)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/cache/keys")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	busy := NewServer(srv.Addr(), fx.engine, nil)
	assert.Error(t, busy.Start(), "port already bound")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.True(t, fx.log.HasLog("INFO", "HTTP server closed"))
}

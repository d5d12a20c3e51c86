package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestManagerConfig_ApplyDefaults(t *testing.T) {
	cfg := ManagerConfig{Level: "debug"}
	cfg.ApplyDefaults()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "logs", cfg.BaseLogDir)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, "trace_id", cfg.TraceIDFieldName)
	assert.NoError(t, cfg.Validate())
}

func TestManagerConfig_Validate(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = DefaultManagerConfig()
	cfg.Encoding = "xml"
	assert.Error(t, cfg.Validate())

	cfg = DefaultManagerConfig()
	cfg.MaxSize = 0
	assert.Error(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("unknown"))
}

func TestManager_GetLoggerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerConfig{
		BaseLogDir:            dir,
		Level:                 "info",
		EnableFile:            true,
		EnableLevelInFilename: true,
	})

	l := m.GetLogger("cache")
	assert.Same(t, l, m.GetLogger("cache"), "loggers are cached per module")

	l.Info("cache started", zap.String("store", "memory"))
	l.Error("store unavailable", zap.Error(errors.New("dial tcp: refused")))
	m.CloseAll()

	info, err := os.ReadFile(filepath.Join(dir, "cache", "cache-info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "cache started")
	assert.Contains(t, string(info), `"module":"cache"`)
	assert.NotContains(t, string(info), "store unavailable")

	errLog, err := os.ReadFile(filepath.Join(dir, "cache", "cache-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "store unavailable")
}

func TestCtxZapLogger_TraceID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := DefaultManagerConfig()
	cfg.AppName = "tasks"
	l := &CtxZapLogger{base: zap.New(core), module: "cache", config: &cfg}

	ctx := WithTraceID(context.Background(), "trace-123")
	l.WarnCtx(ctx, "slow cache operation", zap.String("key", "v1:tasks"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "trace-123", fields["trace_id"])
	assert.Equal(t, "tasks", fields["app_name"])
	assert.Equal(t, "v1:tasks", fields["key"])
}

func TestCtxZapLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core), "cache").With(zap.String("store", "redis"))

	l.Info("flushed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "redis", fields["store"])
	assert.Equal(t, "cache", fields["module"])
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNopLogger().WarnCtx(context.Background(), "ignored")
	})
}

func TestTestCtxLogger(t *testing.T) {
	tl := NewTestCtxLogger()
	ctx := WithTraceID(context.Background(), "abc")

	tl.WarnCtx(ctx, "tag flush degraded to full flush", zap.Strings("tags", []string{"user:1"}), zap.String("store", "memory"))
	tl.InfoCtx(ctx, "cache flushed")

	assert.True(t, tl.HasLog("WARN", "tag flush degraded to full flush"))
	assert.True(t, tl.HasLogWithField("WARN", "tag flush degraded to full flush", "store", "memory"))
	assert.False(t, tl.HasLog("ERROR", "cache flushed"))
	assert.Equal(t, 1, tl.CountLogs("INFO"))
	assert.Equal(t, "abc", tl.Logs()[0].TraceID)

	tl.Clear()
	assert.Empty(t, tl.Logs())
}

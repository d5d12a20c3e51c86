package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestCtxLogger 测试专用的 Logger，将日志记录到内存
// 用法：
//
//	testLogger := logger.NewTestCtxLogger()
//	f := cache.NewFacade(store, cache.WithLogger(testLogger))
//	f.FlushTags(ctx, "user:1")
//	assert.True(t, testLogger.HasLog("WARN", "tag flush degraded to full flush"))
type TestCtxLogger struct {
	logs []LogEntry
	mu   sync.RWMutex
}

var _ CtxLogger = (*TestCtxLogger)(nil)

// LogEntry 日志条目
type LogEntry struct {
	Level   string
	Message string
	TraceID string
	Fields  map[string]any
}

// NewTestCtxLogger 创建测试用 Logger
func NewTestCtxLogger() *TestCtxLogger {
	return &TestCtxLogger{logs: make([]LogEntry, 0)}
}

// DebugCtx 记录 Debug 级别日志
func (t *TestCtxLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.append(ctx, "DEBUG", msg, fields)
}

// InfoCtx 记录 Info 级别日志
func (t *TestCtxLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.append(ctx, "INFO", msg, fields)
}

// WarnCtx 记录 Warn 级别日志
func (t *TestCtxLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.append(ctx, "WARN", msg, fields)
}

// ErrorCtx 记录 Error 级别日志
func (t *TestCtxLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.append(ctx, "ERROR", msg, fields)
}

func (t *TestCtxLogger) append(ctx context.Context, level, msg string, fields []zap.Field) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, LogEntry{
		Level:   level,
		Message: msg,
		TraceID: extractTraceID(ctx, ""),
		Fields:  extractFieldsMap(fields),
	})
}

// HasLog 检查是否存在指定级别和消息的日志
func (t *TestCtxLogger) HasLog(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, l := range t.logs {
		if l.Level == level && l.Message == message {
			return true
		}
	}
	return false
}

// HasLogWithField 检查是否存在指定级别、消息和字段的日志
func (t *TestCtxLogger) HasLogWithField(level, message, fieldKey string, fieldValue any) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, l := range t.logs {
		if l.Level == level && l.Message == message {
			if v, ok := l.Fields[fieldKey]; ok && v == fieldValue {
				return true
			}
		}
	}
	return false
}

// CountLogs 统计指定级别的日志数量
func (t *TestCtxLogger) CountLogs(level string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, l := range t.logs {
		if l.Level == level {
			count++
		}
	}
	return count
}

// Logs 返回所有日志的副本
func (t *TestCtxLogger) Logs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	logs := make([]LogEntry, len(t.logs))
	copy(logs, t.logs)
	return logs
}

// Clear 清空日志
func (t *TestCtxLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = make([]LogEntry, 0)
}

// extractFieldsMap 将 zap.Field 编码为 map，便于断言
func extractFieldsMap(fields []zap.Field) map[string]any {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}

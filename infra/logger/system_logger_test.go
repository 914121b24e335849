package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	entries []SystemLog
	done    chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{done: make(chan struct{}, 16)}
}

func (c *captureSink) LogSystemEvent(_ context.Context, entry any) error {
	c.mu.Lock()
	c.entries = append(c.entries, entry.(SystemLog))
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *captureSink) wait(t *testing.T) SystemLog {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not called")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[len(c.entries)-1]
}

func TestNewSystemLogger(t *testing.T) {
	logger := NewSystemLogger(nil, SystemLoggerConfig{
		MinLevel:    LevelWarn,
		Service:     "test-service",
		Version:     "1.0.0",
		Environment: "test",
	})

	assert.NotNil(t, logger)
	assert.Equal(t, LevelWarn, logger.minLevel)
	assert.Equal(t, "test-service", logger.service)
	assert.Equal(t, "1.0.0", logger.version)
	assert.Equal(t, "test", logger.environment)
}

func TestNewSystemLogger_DefaultsToInfo(t *testing.T) {
	logger := NewSystemLogger(nil, SystemLoggerConfig{})
	assert.Equal(t, LevelInfo, logger.minLevel)
}

func TestSystemLogger_ShouldLog(t *testing.T) {
	tests := []struct {
		name     string
		minLevel LogLevel
		level    LogLevel
		expected bool
	}{
		{"debug_level_allows_all", LevelDebug, LevelDebug, true},
		{"info_level_blocks_debug", LevelInfo, LevelDebug, false},
		{"info_level_allows_info", LevelInfo, LevelInfo, true},
		{"warn_level_allows_error", LevelWarn, LevelError, true},
		{"error_level_blocks_warn", LevelError, LevelWarn, false},
		{"fatal_level_allows_fatal", LevelFatal, LevelFatal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewSystemLogger(nil, SystemLoggerConfig{MinLevel: tt.minLevel})
			assert.Equal(t, tt.expected, logger.shouldLog(tt.level))
		})
	}
}

func TestSystemLogger_SinkReceivesContext(t *testing.T) {
	sink := newCaptureSink()
	logger := NewSystemLogger(sink, SystemLoggerConfig{
		MinLevel:    LevelDebug,
		Service:     "storepay",
		Environment: "test",
	})

	logger.Error("callback rejected", errors.New("bad signature"), LogContext{
		TenantID:  "7",
		Provider:  "coinpayments",
		RequestID: "req-1",
		Fields:    map[string]any{"order_id": 42},
	})

	entry := sink.wait(t)
	assert.Equal(t, LevelError, entry.Level)
	assert.Equal(t, "callback rejected", entry.Message)
	assert.Equal(t, "7", entry.TenantID)
	assert.Equal(t, "coinpayments", entry.Provider)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "bad signature", entry.Error)
	assert.Equal(t, 42, entry.Fields["order_id"])
	assert.Equal(t, "storepay", entry.Service)
}

func TestSystemLogger_FilteredEntriesSkipSink(t *testing.T) {
	sink := newCaptureSink()
	logger := NewSystemLogger(sink, SystemLoggerConfig{MinLevel: LevelWarn})

	logger.Info("ignored")
	logger.Warn("kept")

	entry := sink.wait(t)
	assert.Equal(t, "kept", entry.Message)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.entries, 1)
}

func TestSystemLogger_ErrorDoesNotMutateCallerFields(t *testing.T) {
	logger := NewSystemLogger(nil, SystemLoggerConfig{MinLevel: LevelDebug})
	fields := map[string]any{"k": "v"}

	logger.Error("boom", errors.New("x"), LogContext{Fields: fields})

	_, ok := fields["error"]
	assert.False(t, ok)
}

func TestExtractComponent(t *testing.T) {
	tests := []struct {
		file     string
		expected string
	}{
		{"/src/storepay/provider/coinpayments/adapter.go", "provider/coinpayments"},
		{"/src/storepay/ledger/store.go", "ledger"},
		{"/elsewhere/pkg/file.go", "pkg"},
		{"file.go", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractComponent(tt.file))
		})
	}
}

func TestContextLogger_AddField(t *testing.T) {
	logger := NewSystemLogger(nil, SystemLoggerConfig{})
	base := logger.WithContext(LogContext{TenantID: "1"})

	base.AddField("order_id", int64(5)).SetRequestID("req-9")

	assert.Equal(t, int64(5), base.context.Fields["order_id"])
	assert.Equal(t, "req-9", base.context.RequestID)
	assert.Equal(t, "1", base.context.TenantID)
}

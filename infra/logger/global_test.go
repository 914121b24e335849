package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetGlobal() {
	globalLogger = nil
	once = sync.Once{}
}

func TestInitGlobalLogger(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	InitGlobalLogger(nil, "test", LevelWarn)

	assert.NotNil(t, globalLogger)
	assert.Equal(t, "storepay", globalLogger.service)
	assert.Equal(t, "1.0.0", globalLogger.version)
	assert.Equal(t, LevelWarn, globalLogger.minLevel)
}

func TestInitGlobalLogger_UnknownLevel(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	InitGlobalLogger(nil, "test", LogLevel("verbose"))
	assert.Equal(t, LevelInfo, globalLogger.minLevel)
}

func TestGetGlobalLogger_Fallback(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	logger := GetGlobalLogger()
	assert.NotNil(t, logger)
	assert.Equal(t, "storepay", logger.service)
}

func TestWithTenantAndProvider(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)
	InitGlobalLogger(nil, "test", LevelError)

	cl := WithTenantAndProvider("3", "robokassa")
	assert.Equal(t, "3", cl.context.TenantID)
	assert.Equal(t, "robokassa", cl.context.Provider)

	// must not panic
	Info("info")
	Error("error", nil)
}

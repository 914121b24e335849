package logger

import (
	"sync"
)

const (
	serviceName    = "storepay"
	serviceVersion = "1.0.0"
)

var (
	globalLogger *SystemLogger
	globalMu     sync.Mutex
	once         sync.Once
)

// InitGlobalLogger initializes the global system logger. sink may be nil.
func InitGlobalLogger(sink Sink, environment string, level LogLevel) {
	once.Do(func() {
		cfg := SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      level,
			Service:       serviceName,
			Version:       serviceVersion,
			Environment:   environment,
		}
		if _, ok := levelOrder[cfg.MinLevel]; !ok {
			cfg.MinLevel = LevelInfo
		}

		globalMu.Lock()
		globalLogger = NewSystemLogger(sink, cfg)
		globalMu.Unlock()
	})
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// console-only fallback until InitGlobalLogger runs
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Service:       serviceName,
			Version:       serviceVersion,
			Environment:   "development",
		})
	}
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// Sync flushes the global logger
func Sync() {
	_ = GetGlobalLogger().Sync()
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithTenant creates a context logger with tenant ID
func WithTenant(tenantID string) *ContextLogger {
	return WithContext(LogContext{TenantID: tenantID})
}

// WithTenantAndProvider creates a context logger with tenant and provider
func WithTenantAndProvider(tenantID, provider string) *ContextLogger {
	return WithContext(LogContext{
		TenantID: tenantID,
		Provider: provider,
	})
}

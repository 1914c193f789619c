package utils

import (
	"time"

	"go.uber.org/zap"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// StartTimer logs the start of operation at debug level and returns a function that logs its
// completion with the elapsed time. Extra fields are attached to both entries.
func StartTimer(logger *zap.Logger, operation string, fields ...zap.Field) func(msg string, extra ...zap.Field) {
	start := time.Now()
	l := OrNop(logger).With(append([]zap.Field{zap.String("operation", operation)}, fields...)...)
	l.Debug("Operation started")
	return func(msg string, extra ...zap.Field) {
		l.Info(msg, append(extra, zap.Duration("duration", time.Since(start)))...)
	}
}

// Package logger wraps zap for the core packages.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger carries a zap logger plus fields attached to every entry.
type Logger struct {
	Logger *zap.Logger
	fields []zap.Field
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{Logger: logger}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return NewLogger(zap.NewNop())
}

// NewZapLogger builds a zap logger for the given level and format ("console" or "json").
func NewZapLogger(level zapcore.Level, logFormat string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch logFormat {
	case "json":
	case "console", "":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// WithFields returns a child logger carrying the extra fields.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: l.Logger,
		fields: append(append([]zap.Field{}, l.fields...), fields...),
	}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.Logger.Debug(msg, l.with(fields)...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.Logger.Info(msg, l.with(fields)...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, l.with(fields)...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, l.with(fields)...)
}

func (l *Logger) with(fields []zap.Field) []zap.Field {
	if len(l.fields) == 0 {
		return fields
	}
	return append(append([]zap.Field{}, l.fields...), fields...)
}

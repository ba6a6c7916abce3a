// Package logger wraps zap behind a small interface so the rest of the
// codebase never imports zap directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is an aliased zap field so call sites stay decoupled from zap.
type Field = zapcore.Field

// Logger is the logging interface used across the engine.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Named(name string) Logger
}

type zapLogger struct {
	zl *zap.Logger
}

// New builds a production JSON logger at the given level
// (debug, info, warn, error) named after the owning service.
func New(level, name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		zl = zap.NewNop()
	}

	return &zapLogger{zl: zl.Named(name)}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() Logger {
	return &zapLogger{zl: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.zl.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.zl.Error(msg, fields...) }

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{zl: l.zl.Named(name)}
}

// Field helpers, so call sites read logger.String(...) instead of zap.String(...).

func String(key, val string) Field        { return zap.String(key, val) }
func Int(key string, val int) Field       { return zap.Int(key, val) }
func Int64(key string, val int64) Field   { return zap.Int64(key, val) }
func Float64(key string, v float64) Field { return zap.Float64(key, v) }
func Bool(key string, val bool) Field     { return zap.Bool(key, val) }
func Error(err error) Field               { return zap.Error(err) }
func Any(key string, val interface{}) Field {
	return zap.Any(key, val)
}

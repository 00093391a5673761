// Package logging provides the key/value logger used across squadcore and its
// zap-backed implementation.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger receives structured log events. Keys and values alternate in kv.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Noop returns a logger that discards everything.
func Noop() Logger { return noopLogger{} }

// OrNoop returns l, or the no-op logger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// ZapLogger adapts a zap SugaredLogger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap builds a production JSON logger at the given level
// (debug, info, warn, error).
func NewZap(level string) (*ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return FromZap(base), nil
}

// FromZap wraps an existing zap logger.
func FromZap(base *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: base.Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *ZapLogger) With(kv ...any) *ZapLogger {
	return &ZapLogger{sugar: l.sugar.With(kv...)}
}

func (l *ZapLogger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *ZapLogger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *ZapLogger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, kv...) }
func (l *ZapLogger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

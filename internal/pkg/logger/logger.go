// Package logger provides the process-wide zap logger for Safeguard.
//
// Output is JSON unless format is "console". Every entry carries
// service=safeguard so shipped logs can be filtered per service.
package logger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "safeguard"

var (
	global atomic.Pointer[zap.Logger]
	level  = zap.NewAtomicLevel()
	once   sync.Once
)

// Init builds the global logger. Only the first call has an effect.
// level: debug, info, warn, error
// format: json or console
func Init(lvl, format string) error {
	var initErr error
	once.Do(func() {
		if err := level.UnmarshalText([]byte(lvl)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", lvl, err)
			return
		}

		cfg := zap.NewProductionConfig()
		if format == "console" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.Level = level
		cfg.InitialFields = map[string]any{"service": serviceName}

		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global.Store(l)
	})
	return initErr
}

// Level returns the level the logger was initialised with.
func Level() zapcore.Level {
	return level.Level()
}

// L returns the global logger. Panics if Init has not been called.
func L() *zap.Logger {
	l := global.Load()
	if l == nil {
		panic("logger.Init() must be called before logger.L()")
	}
	return l
}

// Replace swaps the global logger and returns a func that restores the
// previous one. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) (restore func()) {
	prev := global.Swap(l.WithOptions(zap.AddCallerSkip(1)))
	return func() { global.Store(prev) }
}

// Debug logs at DebugLevel on the global logger.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs at InfoLevel on the global logger.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs at WarnLevel on the global logger.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs at ErrorLevel on the global logger.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Transition returns a logger scoped to one action on one event. Callers log
// on it directly, so the package caller skip is undone.
func Transition(eventID, action, actorID string) *zap.Logger {
	return L().WithOptions(zap.AddCallerSkip(-1)).With(
		zap.String("event_id", eventID),
		zap.String("action", action),
		zap.String("actor", actorID),
	)
}

// Sync flushes buffered entries. It is a no-op before Init.
func Sync() error {
	l := global.Load()
	if l == nil {
		return nil
	}
	return l.Sync()
}

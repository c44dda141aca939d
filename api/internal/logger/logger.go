// Package logger wraps zap for the service binaries.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	log   atomic.Pointer[zap.Logger]
)

// Init builds the process logger. format "json" selects the production
// encoder, anything else the human-readable console encoder.
func Init(lvl, format string) error {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	SetLevel(lvl)
	cfg.Level = level

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	log.Store(l)
	return nil
}

// SetLevel changes the level of the process logger. Unknown values fall back to info.
func SetLevel(lvl string) {
	switch lvl {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Get returns the process logger, creating a production one if Init was not called.
func Get() *zap.Logger {
	if l := log.Load(); l != nil {
		return l
	}
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	log.CompareAndSwap(nil, l)
	return log.Load()
}

// With returns a child logger carrying fields.
func With(fields ...zap.Field) *zap.Logger {
	return Get().WithOptions(zap.AddCallerSkip(-1)).With(fields...)
}

func Sync() error {
	if l := log.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

func Debugf(format string, args ...any) { Get().Sugar().Debugf(format, args...) }
func Infof(format string, args ...any)  { Get().Sugar().Infof(format, args...) }
func Warnf(format string, args ...any)  { Get().Sugar().Warnf(format, args...) }
func Errorf(format string, args ...any) { Get().Sugar().Errorf(format, args...) }
func Fatalf(format string, args ...any) { Get().Sugar().Fatalf(format, args...) }

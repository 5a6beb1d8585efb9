package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level leveled logger used by every service binary.
// - backed by a zap sugared logger with an atomic level
// - provides Debug/Info/Warn/Error/Fatal variants and Init(level)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = build("json").Sugar()
)

func build(format string) *zap.Logger {
	var enc zapcore.Encoder
	if format == "console" {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	return zap.New(core)
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	level.SetLevel(parseLevel(l))
}

// Configure sets the level and the output encoding ("json" or "console").
func Configure(l, format string) error {
	f := strings.ToLower(strings.TrimSpace(format))
	if f != "" && f != "json" && f != "console" {
		return fmt.Errorf("logger: unsupported format %q", format)
	}
	Init(l)
	replace(build(f))
	return nil
}

func parseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

func replace(z *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = z.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// With returns a sugared logger carrying the given key/value pairs.
func With(kv ...interface{}) *zap.SugaredLogger { return current().With(kv...) }

func Debugf(format string, v ...interface{}) { current().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { current().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { current().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { current().Errorf(format, v...) }

// Fatalf logs at fatal level and exits with status 1.
func Fatalf(format string, v ...interface{}) { current().Fatalf(format, v...) }

func Debug(v string) { current().Debug(v) }
func Info(v string)  { current().Info(v) }
func Warn(v string)  { current().Warn(v) }
func Error(v string) { current().Error(v) }

// Sync flushes buffered entries.
func Sync() error { return current().Sync() }

// LevelString returns the current level as text.
func LevelString() string {
	return level.Level().String()
}

// Package logger wraps zap behind a small interface so stage code never
// depends on the logging backend directly.
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the minimum level and the output encoding.
type Config struct {
	Level  string // debug, info, warn, error, fatal
	Format string // "json" (default) or "console"
}

// Field carries one structured key-value pair on a log entry.
type Field = zap.Field

// Logger is the logging surface available to the pipeline stages.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and exits the process.
	Fatal(msg string, fields ...Field)
	// With returns a logger that attaches fields to every entry.
	With(fields ...Field) Logger
	// Sync flushes buffered entries, typically on shutdown.
	Sync() error
}

// New builds the stage logger. Console format is meant for local runs;
// deployed stages log JSON.
func New(cfg Config) (Logger, error) {
	var zcfg zap.Config
	if strings.EqualFold(cfg.Format, "console") {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	z, err := zcfg.Build(
		zap.AddCallerSkip(1), // report the call site, not this wrapper
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return &stageLogger{z: z}, nil
}

// NewNop returns a logger that discards everything. Tests use it.
func NewNop() Logger {
	return nopLogger{}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

type stageLogger struct {
	z *zap.Logger
}

func (l *stageLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *stageLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *stageLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *stageLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *stageLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }
func (l *stageLogger) Sync() error                       { return l.z.Sync() }

func (l *stageLogger) With(fields ...Field) Logger {
	return &stageLogger{z: l.z.With(fields...)}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (nopLogger) Fatal(string, ...Field) {}
func (nopLogger) With(...Field) Logger   { return nopLogger{} }
func (nopLogger) Sync() error            { return nil }

// Field constructors, re-exported so callers import only this package.

func String(key, val string) Field { return zap.String(key, val) }

func Int(key string, val int) Field { return zap.Int(key, val) }

func Int64(key string, val int64) Field { return zap.Int64(key, val) }

func Float64(key string, val float64) Field { return zap.Float64(key, val) }

func Bool(key string, val bool) Field { return zap.Bool(key, val) }

func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func Time(key string, val time.Time) Field { return zap.Time(key, val) }

func Error(err error) Field { return zap.Error(err) }

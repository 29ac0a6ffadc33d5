// Package logger wraps the process-wide zap logger.
package logger

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ContextKey string

const (
	RequestIDKey  ContextKey = "request_id"
	ContractIDKey ContextKey = "contract_id"
)

const name = "lexanalyzer"

// level is shared by every core built here so SetLevel applies at runtime.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init installs the global zap logger writing to stdout.
func Init(cfg *Config) error {
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.EncoderConfig = encoderConfig()
	if cfg.Format != "json" {
		zc.Encoding = "console"
	}
	zc.Sampling = nil
	level.SetLevel(ParseLevel(cfg.Level))

	l, err := zc.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l.Named(name))
	return nil
}

// InitWriter is Init with an arbitrary sink, used by tests.
func InitWriter(cfg *Config, w io.Writer) {
	level.SetLevel(ParseLevel(cfg.Level))
	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	zap.ReplaceGlobals(zap.New(core).Named(name))
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return ec
}

func ParseLevel(s string) zapcore.Level {
	switch s {
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

func SetLevel(s string) { level.SetLevel(ParseLevel(s)) }

// L returns the global logger. It is a no-op logger until Init runs.
func L() *zap.Logger { return zap.L() }

// Named returns a child logger for one component.
func Named(component string) *zap.Logger { return zap.L().Named(component) }

// WithContext returns the global logger carrying request and contract ids found in ctx.
func WithContext(ctx context.Context) *zap.Logger {
	l := zap.L()
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if id, ok := ctx.Value(ContractIDKey).(string); ok && id != "" {
		l = l.With(zap.String("contract_id", id))
	}
	return l
}

func WithContractID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContractIDKey, id)
}

func Debug(msg string, fields ...zap.Field) { zap.L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { zap.L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { zap.L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { zap.L().Error(msg, fields...) }

// Sync flushes buffered entries. The error from syncing a terminal is
// meaningless and dropped.
func Sync() { _ = zap.L().Sync() }

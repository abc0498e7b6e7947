package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger. level is one of debug, info, warn, error (default
// info); format is json or console (default json). The logger is also
// installed as zap's global so packages without an injected logger can use
// zap.L().
func New(level, format, service string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	lg, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		lg = lg.With(zap.String("service", service))
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		lg = lg.With(zap.String("hostname", host))
	}

	zap.ReplaceGlobals(lg)
	return lg, nil
}

// LogRequest logs an outbound API request.
func LogRequest(lg *zap.Logger, upstream, method, url string, fields ...zap.Field) {
	lg.Info("upstream request",
		append([]zap.Field{zap.String("upstream", upstream), zap.String("method", method), zap.String("url", url)}, fields...)...)
}

// LogResponse logs an upstream API response.
func LogResponse(lg *zap.Logger, upstream string, status int, took time.Duration, results int) {
	lg.Info("upstream response",
		zap.String("upstream", upstream),
		zap.Int("status", status),
		zap.Int64("duration_ms", took.Milliseconds()),
		zap.Int("results", results),
	)
}

// LogError logs a failed operation against an upstream or the store.
func LogError(lg *zap.Logger, component, operation string, err error) {
	lg.Error(operation+" failed", zap.String("component", component), zap.Error(err))
}

// LogUpsert logs a reconciliation pass.
func LogUpsert(lg *zap.Logger, created, updated int, took time.Duration) {
	lg.Info("records reconciled",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int64("duration_ms", took.Milliseconds()),
	)
}

// Package telemetry provides the ambient stack shared by every other
// package: zap-backed structured logging bridged onto log/slog,
// process-local prometheus counters, and an optional otel tracer for
// latency checkpoints. None of this dials out to an external
// collector — metrics export transport is explicitly out of scope
// (spec.md §1).
package telemetry

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewLogger constructs an *slog.Logger backed by zap, the same
// zapslog bridge used across the retrieved services. Every line
// carries a "service" field set to serviceName (defaulting to
// "tradecore"), so logs from an embedding host can be told apart from
// this module's own — the retrieved services/marketfeeds logger has
// no such field since it only ever runs as its own process. The
// returned close function flushes the underlying zap core and should
// be called on shutdown.
func NewLogger(production bool, serviceName string) (*slog.Logger, func() error) {
	if serviceName == "" {
		serviceName = "tradecore"
	}

	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.InitialFields = map[string]interface{}{"service": serviceName}

	zapLogger := zap.Must(cfg.Build())
	return slog.New(zapslog.NewHandler(zapLogger.Core())), zapLogger.Sync
}

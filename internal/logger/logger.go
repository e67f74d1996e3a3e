// Package logger builds the service's zap logger and the field helpers
// that correlate log lines across an allocation: every line of a fan-out
// carries the deal that triggered it, every projection line the adviser
// being evaluated.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the service logger. JSON to stdout for deployments, console
// encoding for local runs; an unparseable level falls back to info rather
// than failing startup.
func New(level, format, serviceName string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg = zap.Config{
			Encoding:         "json",
			EncoderConfig:    encoderCfg,
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
			Sampling: &zap.SamplingConfig{
				Initial:    100,
				Thereafter: 100,
			},
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{}
	if serviceName != "" {
		fields = append(fields, zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("hostname", hostname))
	}
	return log.With(fields...), nil
}

// WithDeal scopes a logger to one deal's allocation flow. Operators grep
// allocations by deal_id, so the correlation fields attach once here
// instead of on every call site.
func WithDeal(log *zap.Logger, dealID, servicePackage string) *zap.Logger {
	return log.With(
		zap.String("deal_id", dealID),
		zap.String("service_package", servicePackage),
	)
}

// WithAdviser scopes a logger to one adviser's capacity projection.
func WithAdviser(log *zap.Logger, email string) *zap.Logger {
	return log.With(zap.String("adviser_email", email))
}

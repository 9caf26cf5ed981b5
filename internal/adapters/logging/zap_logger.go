package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// ZapLogger implements ports.Logger on top of a *zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// NewLogger builds a production or development zap logger at the given level.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

func (z *ZapLogger) Info(msg string, fields ...ports.Field)  { z.logger.Info(msg, toZap(fields)...) }
func (z *ZapLogger) Error(msg string, fields ...ports.Field) { z.logger.Error(msg, toZap(fields)...) }
func (z *ZapLogger) Warn(msg string, fields ...ports.Field)  { z.logger.Warn(msg, toZap(fields)...) }
func (z *ZapLogger) Debug(msg string, fields ...ports.Field) { z.logger.Debug(msg, toZap(fields)...) }

func toZap(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && f.Key == "error" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

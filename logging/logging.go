// Package logging builds the process-wide zap logger from settings.
package logging

import (
	"fmt"
	"strings"

	"newsletter-backend/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a structured logger. Format "console" selects the human
// readable development encoder; anything else logs JSON.
func New(s config.LogSettings) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if strings.TrimSpace(s.Level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(s.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", s.Level, err)
		}
		level = zap.NewAtomicLevelAt(parsed)
	}

	var cfg zap.Config
	if s.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", "newsletter-backend")), nil
}

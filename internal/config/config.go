// Package config reads server settings from the environment and builds the
// process logger.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"traceview-mcp/internal/trace"
)

type Config struct {
	LogLevel zapcore.Level `env:"TRACEVIEW_LOG_LEVEL" envDefault:"info"`

	// DepthWorkers bounds the per-stream depth pass; 0 means GOMAXPROCS.
	DepthWorkers int          `env:"TRACEVIEW_DEPTH_WORKERS" envDefault:"0"`
	Layout       trace.Layout `env:"TRACEVIEW_LAYOUT"        envDefault:"flame"`

	// Trace is loaded at startup when set.
	Trace string `env:"TRACEVIEW_TRACE"`

	ViewLimit int `env:"TRACEVIEW_VIEW_LIMIT" envDefault:"200"`
}

func Parse() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{})
	if err != nil {
		return cfg, err
	}
	if cfg.DepthWorkers < 0 {
		return cfg, fmt.Errorf("TRACEVIEW_DEPTH_WORKERS must not be negative, got %d", cfg.DepthWorkers)
	}
	if cfg.ViewLimit <= 0 {
		return cfg, fmt.Errorf("TRACEVIEW_VIEW_LIMIT must be positive, got %d", cfg.ViewLimit)
	}
	return cfg, nil
}

// NewLogger returns a JSON logger on stderr. Stdout carries the MCP stdio
// transport and must stay clean.
func NewLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling:    nil,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:       "timestamp",
			MessageKey:    "message",
			LevelKey:      "level",
			EncodeLevel:   zapcore.LowercaseLevelEncoder,
			NameKey:       "logger",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339TimeEncoder,
			LineEnding:    zapcore.DefaultLineEnding,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build(zap.Fields(zap.String("service", "traceview-mcp")))
	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}
	return logger, nil
}

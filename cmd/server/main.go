package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"traceview-mcp/internal/config"
	"traceview-mcp/internal/formats"
	"traceview-mcp/internal/session"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	sess := session.New(session.Options{
		Registry:     formats.NewDefaultRegistry(logger),
		Logger:       logger,
		DepthWorkers: cfg.DepthWorkers,
		Layout:       cfg.Layout,
	})

	// A bad startup trace is not fatal; the client can still load another one.
	if cfg.Trace != "" {
		if _, err := sess.Load(cfg.Trace); err != nil {
			logger.Warn("startup trace not loaded", zap.String("path", cfg.Trace), zap.Error(err))
		}
	}

	// Create MCP server
	s := server.NewMCPServer(
		"traceview",
		"1.0.0",
		server.WithLogging(),
	)
	registerTools(s, &handlers{session: sess, viewLimit: cfg.ViewLimit})

	logger.Info("serving MCP over stdio", zap.String("layout", cfg.Layout.String()), zap.Int("view_limit", cfg.ViewLimit))
	if err := server.ServeStdio(s); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/js-playground/internal/config"
	"github.com/sakif/js-playground/internal/metrics"
	"github.com/sakif/js-playground/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playground HTTP and WebSocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Ensure the data directory exists (like `mkdir -p`).
	if cfg.Server.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.Server.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}

	collector := metrics.NewCollector()

	// A docker backend that cannot start falls back to the embedded
	// interpreter. If that fails too, the server still starts and
	// /api/execute answers 503.
	exec, closeExec, err := newExecutor(cfg.Executor, logger)
	if err != nil && cfg.Executor.Backend == config.BackendDocker {
		logger.Warn("docker backend unavailable, falling back to jsvm",
			slog.String("error", err.Error()),
		)
		cfg.Executor.Backend = config.BackendJSVM
		exec, closeExec, err = newExecutor(cfg.Executor, logger)
	}
	if err != nil {
		logger.Warn("execution backend unavailable, /api/execute will return errors",
			slog.String("backend", cfg.Executor.Backend),
			slog.String("error", err.Error()),
		)
	} else {
		defer closeExec()
		exec = metrics.InstrumentExecutor(exec, cfg.Executor.Backend, collector)
	}

	srvCfg := server.Config{
		Port:      cfg.Server.Port,
		DBPath:    cfg.Server.DBPath,
		QueueSize: cfg.Executor.QueueSize,
		Backend:   cfg.Executor.Backend,
	}

	srv, err := server.New(srvCfg, logger, exec, collector)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start()
}

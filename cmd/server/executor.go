package main

import (
	"fmt"
	"log/slog"

	"github.com/sakif/js-playground/internal/config"
	"github.com/sakif/js-playground/internal/executor"
	"github.com/sakif/js-playground/internal/executor/docker"
	"github.com/sakif/js-playground/internal/executor/jsvm"
)

// newExecutor builds the configured backend. The returned close func
// releases its pools.
func newExecutor(cfg config.ExecutorConfig, logger *slog.Logger) (executor.Executor, func(), error) {
	switch cfg.Backend {
	case config.BackendDocker:
		dcfg := docker.DefaultConfig()
		dcfg.Image = cfg.DockerImage
		dcfg.Timeout = cfg.Timeout
		dcfg.PoolSize = cfg.PoolSize

		exec, err := docker.New(dcfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return exec, func() { exec.Close() }, nil

	case config.BackendJSVM:
		jcfg := jsvm.DefaultConfig()
		jcfg.Timeout = cfg.Timeout
		jcfg.PoolSize = cfg.PoolSize
		jcfg.MaxOutputBytes = cfg.MaxOutputBytes

		exec := jsvm.New(jcfg, logger)
		return exec, func() { exec.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown executor backend %q", cfg.Backend)
	}
}

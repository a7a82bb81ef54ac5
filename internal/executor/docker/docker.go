// Package docker runs user-submitted JavaScript with Node.js inside a
// throwaway container: no network, read-only root filesystem, unprivileged
// user, memory/CPU/pid caps. Each container serves exactly one run.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/js-playground/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates a new Docker Executor, pulls the image and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling image %s: %w", cfg.Image, err)
	}
	defer reader.Close()
	// Drain to block until the pull is complete.
	_, _ = io.Copy(io.Discard, reader)
	logger.Info("docker image is ready", slog.String("image", cfg.Image))

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the container pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Execute runs the code in a pre-warmed container. Timeouts and
// cancellation are reported as failure results; a Go error means Docker
// itself could not run the request.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if err := executor.Validate(req); err != nil {
		return nil, err
	}

	start := time.Now()

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res := executor.Failure(executor.KindCancelled, "execution cancelled")
			res.ID = req.ID
			return res, nil
		}
		return nil, fmt.Errorf("docker: getting container from pool: %w", err)
	}

	// A container serves one run; remove it whatever happens.
	defer e.pool.removeContainer(containerID)

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Env:          []string{codeEnv + "=" + req.Code},
		Cmd:          []string{"node", "-e", harness},
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var res *executor.ExecutionResult

	select {
	case <-done:
		res, err = e.collect(ctx, execResp.ID, stdout.String(), stderr.String())
		if err != nil {
			return nil, err
		}
	case <-executeCtx.Done():
		if ctx.Err() != nil {
			res = executor.Failure(executor.KindCancelled, "execution cancelled")
		} else {
			res = executor.Failure(executor.KindTimeout,
				fmt.Sprintf("execution timed out after %s", e.config.Timeout))
		}
	}

	res.ID = req.ID
	res.SetDuration(time.Since(start))

	e.logger.Debug("container run finished",
		slog.String("id", req.ID),
		slog.String("container", containerID),
		slog.String("type", string(res.Type)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// collect turns the finished exec's output into a result.
func (e *Executor) collect(ctx context.Context, execID, stdout, stderr string) (*executor.ExecutionResult, error) {
	res, found, err := parseEnvelope(stdout)
	if err != nil {
		return nil, err
	}
	if found {
		return res, nil
	}

	// No envelope: the code killed the process (process.exit, fatal OOM).
	exitCode := -1
	if inspect, err := e.cli.ContainerExecInspect(ctx, execID); err == nil {
		exitCode = inspect.ExitCode
	}

	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = fmt.Sprintf("process exited with code %d before producing a result", exitCode)
	}
	return executor.Failure(executor.KindRuntime, msg), nil
}

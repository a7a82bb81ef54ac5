package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/js-playground/internal/config"
	"github.com/sakif/js-playground/internal/executor"
)

// errExecutionFailed makes the process exit 1 after an error envelope has
// already been printed.
var errExecutionFailed = errors.New("execution failed")

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Run a JavaScript file (or stdin) and print the result envelope",
	Long: `run executes the script body as a function, like the playground does, and
prints the result envelope as JSON. It exits 0 on success and 1 on failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runScriptCmd,
}

func runScriptCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	code, err := readSource(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	// One run needs at most one warm runtime.
	cfg.Executor.PoolSize = min(cfg.Executor.PoolSize, 1)

	exec, closeExec, err := newExecutor(cfg.Executor, logger)
	if err != nil {
		return fmt.Errorf("starting %s backend: %w", cfg.Executor.Backend, err)
	}
	defer closeExec()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScript(ctx, exec, code, cmd.OutOrStdout())
}

// runScript executes code, prints the envelope to w and reports a failure
// envelope as errExecutionFailed.
func runScript(ctx context.Context, exec executor.Executor, code string, w io.Writer) error {
	req := executor.ExecutionRequest{Code: code}
	if err := executor.Validate(req); err != nil {
		return err
	}

	res, err := exec.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("executing script: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if !res.OK() {
		return errExecutionFailed
	}
	return nil
}

// readSource reads the script from path, or from stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading script %s: %w", path, err)
	}
	return string(data), nil
}

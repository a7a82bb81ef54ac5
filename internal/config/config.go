// Package config loads playground configuration from an optional YAML file
// and environment variables. Environment variables take precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendJSVM   = "jsvm"
	BackendDocker = "docker"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Executor ExecutorConfig `yaml:"executor"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener and the checklist store.
type ServerConfig struct {
	Port   int    `yaml:"port"`    // Override: PORT
	DBPath string `yaml:"db_path"` // Override: DB_PATH
}

// ExecutorConfig selects and tunes the execution backend.
type ExecutorConfig struct {
	Backend        string        `yaml:"backend"`          // "jsvm" (default) or "docker". Override: EXECUTOR_BACKEND
	Timeout        time.Duration `yaml:"timeout"`          // Override: EXEC_TIMEOUT
	PoolSize       int           `yaml:"pool_size"`        // Pre-warmed runtimes or containers. Override: EXEC_POOL_SIZE
	QueueSize      int           `yaml:"queue_size"`       // Per-session worker queue. Override: EXEC_QUEUE_SIZE
	MaxOutputBytes int           `yaml:"max_output_bytes"` // Override: EXEC_MAX_OUTPUT_BYTES
	DockerImage    string        `yaml:"docker_image"`     // Override: DOCKER_IMAGE
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error. Override: LOG_LEVEL
	Format string `yaml:"format"` // text or json. Override: LOG_FORMAT
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:   8080,
			DBPath: "data/playground.db",
		},
		Executor: ExecutorConfig{
			Backend:        BackendJSVM,
			Timeout:        5 * time.Second,
			PoolSize:       4,
			QueueSize:      16,
			MaxOutputBytes: 64 * 1024,
			DockerImage:    "node:22-alpine",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Server.DBPath = v
	}

	if v := os.Getenv("EXECUTOR_BACKEND"); v != "" {
		c.Executor.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("EXEC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid EXEC_TIMEOUT value %q: %w", v, err)
		}
		c.Executor.Timeout = d
	}
	for _, e := range []struct {
		name string
		dst  *int
	}{
		{"EXEC_POOL_SIZE", &c.Executor.PoolSize},
		{"EXEC_QUEUE_SIZE", &c.Executor.QueueSize},
		{"EXEC_MAX_OUTPUT_BYTES", &c.Executor.MaxOutputBytes},
	} {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", e.name, v, err)
			}
			*e.dst = n
		}
	}
	if v := os.Getenv("DOCKER_IMAGE"); v != "" {
		c.Executor.DockerImage = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	return nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.DBPath == "" {
		return fmt.Errorf("server db_path is required")
	}

	switch c.Executor.Backend {
	case BackendJSVM, BackendDocker:
	default:
		return fmt.Errorf("executor backend must be %q or %q, got %q", BackendJSVM, BackendDocker, c.Executor.Backend)
	}
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor timeout must be positive, got %s", c.Executor.Timeout)
	}
	if c.Executor.PoolSize < 0 {
		return fmt.Errorf("executor pool_size must not be negative, got %d", c.Executor.PoolSize)
	}
	if c.Executor.QueueSize < 1 {
		return fmt.Errorf("executor queue_size must be at least 1, got %d", c.Executor.QueueSize)
	}
	if c.Executor.MaxOutputBytes < 1 {
		return fmt.Errorf("executor max_output_bytes must be at least 1, got %d", c.Executor.MaxOutputBytes)
	}
	if c.Executor.Backend == BackendDocker && c.Executor.DockerImage == "" {
		return fmt.Errorf("executor docker_image is required for the docker backend")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return nil
}

// NewLogger builds the process logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

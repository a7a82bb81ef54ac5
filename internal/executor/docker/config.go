package docker

import (
	"time"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image is the Node.js image used for execution.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// PidsLimit caps the number of processes inside the container.
	PidsLimit int64
	// Timeout is the maximum amount of time the execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides sensible defaults for a Node.js sandbox.
func DefaultConfig() Config {
	return Config{
		Image:       "node:22-alpine",
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		PidsLimit:   64,
		Timeout:     5 * time.Second,
		PoolSize:    2,
	}
}

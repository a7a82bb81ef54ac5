package jsvm

import (
	"time"
)

// Config holds the limits applied to every JavaScript run.
type Config struct {
	// Timeout is the maximum amount of time the execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed runtimes to keep ready. Zero
	// disables pre-warming; runtimes are then built on demand.
	PoolSize int
	// MaxCallStackSize bounds recursion depth inside the interpreter.
	MaxCallStackSize int
	// MaxOutputBytes caps captured console output per run.
	MaxOutputBytes int
	// MaxResultDepth caps how deep nested results are converted.
	MaxResultDepth int
	// MaxResultItems caps how many array/set/map entries are converted.
	MaxResultItems int
}

// DefaultConfig provides sensible defaults for an interactive playground.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		PoolSize:         4,
		MaxCallStackSize: 2048,
		MaxOutputBytes:   64 * 1024,
		MaxResultDepth:   32,
		MaxResultItems:   1000,
	}
}

// withDefaults fills zero limits from DefaultConfig. PoolSize is left as is
// because zero is meaningful there.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PoolSize < 0 {
		c.PoolSize = 0
	}
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = d.MaxCallStackSize
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = d.MaxOutputBytes
	}
	if c.MaxResultDepth <= 0 {
		c.MaxResultDepth = d.MaxResultDepth
	}
	if c.MaxResultItems <= 0 {
		c.MaxResultItems = d.MaxResultItems
	}
	return c
}

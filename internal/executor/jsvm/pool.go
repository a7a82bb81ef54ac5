package jsvm

import (
	"context"
	"log/slog"
	"sync"
)

// Pool keeps a set of pristine sandboxes ready so a run does not pay for
// runtime construction. Each sandbox is handed out once and never returned.
type Pool struct {
	config    Config
	logger    *slog.Logger
	sandboxes chan *sandbox
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool initializes a new sandbox pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		config:    cfg,
		logger:    logger,
		sandboxes: make(chan *sandbox, cfg.PoolSize),
		done:      make(chan struct{}),
	}
}

// Start begins filling the pool in the background. It is a no-op when
// pre-warming is disabled.
func (p *Pool) Start() {
	if p.config.PoolSize == 0 {
		return
	}
	p.startOnce.Do(func() {
		p.logger.Info("starting javascript runtime pool", slog.Int("poolSize", p.config.PoolSize))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and drops any pre-warmed sandboxes.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		for {
			select {
			case <-p.sandboxes:
			default:
				return
			}
		}
	})
}

// Get returns a fresh sandbox, pre-warmed when one is ready and built on
// the spot otherwise.
func (p *Pool) Get(ctx context.Context) (*sandbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case sb := <-p.sandboxes:
		return sb, nil
	default:
		p.logger.Debug("runtime pool empty, building sandbox inline")
		return newSandbox(p.config), nil
	}
}

// Ready returns the number of pre-warmed sandboxes waiting.
func (p *Pool) Ready() int {
	return len(p.sandboxes)
}

// manager keeps the pool at capacity. The send blocks while the pool is
// full, so the loop only builds a sandbox when one has been taken.
func (p *Pool) manager() {
	defer p.wg.Done()

	for {
		sb := newSandbox(p.config)
		select {
		case p.sandboxes <- sb:
		case <-p.done:
			return
		}
	}
}

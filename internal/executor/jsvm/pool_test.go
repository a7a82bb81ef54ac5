package jsvm

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PoolSize = size
	p := NewPool(cfg.withDefaults(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(p.Stop)
	return p
}

func TestPool_Prewarms(t *testing.T) {
	p := newTestPool(t, 2)
	p.Start()

	assert.Eventually(t, func() bool { return p.Ready() == 2 }, 5*time.Second, 5*time.Millisecond)
}

func TestPool_HandsOutDistinctSandboxes(t *testing.T) {
	p := newTestPool(t, 1)
	p.Start()

	a, err := p.Get(context.Background())
	require.NoError(t, err)
	b, err := p.Get(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotSame(t, a.vm, b.vm)
}

func TestPool_BuildsInlineWithoutPrewarming(t *testing.T) {
	p := newTestPool(t, 0)
	p.Start()

	sb, err := p.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sb)
	assert.Equal(t, 0, p.Ready())
}

func TestPool_GetHonoursCancelledContext(t *testing.T) {
	p := newTestPool(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_StopIsIdempotent(t *testing.T) {
	p := newTestPool(t, 2)
	p.Start()

	p.Stop()
	p.Stop()
	assert.Equal(t, 0, p.Ready())
}

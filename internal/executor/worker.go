package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/js-playground/internal/apperror"
)

// DefaultQueueSize is how many submitted requests a Worker buffers while it
// is busy with the current one.
const DefaultQueueSize = 16

var (
	ErrQueueFull    = apperror.Unavailable("execution queue is full")
	ErrWorkerClosed = apperror.Unavailable("execution worker is closed")
)

// Worker runs requests on an Executor one at a time, in submission order,
// from its own goroutine. Callers never block on execution: Submit enqueues
// and returns, and the result arrives later through the onResult callback.
//
// Every request accepted by Submit produces exactly one onResult call, even
// when the backend fails, panics, or the worker is closed while the request
// is still queued.
type Worker struct {
	exec     Executor
	onResult func(*ExecutionResult)
	logger   *slog.Logger

	queue  chan ExecutionRequest
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queueSize int
	logger    *slog.Logger
}

// WithQueueSize sets the submission buffer. Values below 1 are ignored.
func WithQueueSize(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewWorker starts a worker goroutine delivering results to onResult.
func NewWorker(exec Executor, onResult func(*ExecutionResult), opts ...WorkerOption) *Worker {
	o := workerOptions{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		exec:     exec,
		onResult: onResult,
		logger:   o.logger,
		queue:    make(chan ExecutionRequest, o.queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.loop()
	return w
}

// Submit enqueues a request and returns its id. A request without an id is
// assigned one. Invalid requests are rejected here and never reach the
// executor; so are requests arriving while the queue is full or after Close.
func (w *Worker) Submit(req ExecutionRequest) (string, error) {
	if err := Validate(req); err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = xid.New().String()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return "", ErrWorkerClosed
	}

	select {
	case w.queue <- req:
		return req.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Pending returns the number of queued requests not yet started.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Close stops accepting requests, lets queued ones finish, and waits for the
// worker goroutine to exit.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()
}

// Abort interrupts the running request, then closes the worker. Queued
// requests are still answered, each with a cancelled failure.
func (w *Worker) Abort() {
	w.cancel()
	w.Close()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for req := range w.queue {
		res := w.run(req)
		w.deliver(res)
	}
}

// run executes one request and always returns a result.
func (w *Worker) run(req ExecutionRequest) (res *ExecutionResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("executor panicked",
				slog.String("id", req.ID),
				slog.String("panic", fmt.Sprint(r)),
			)
			res = Failure(KindInternal, fmt.Sprintf("executor panic: %v", r))
		}
		res.ID = req.ID
		if res.DurationMS == 0 {
			res.SetDuration(time.Since(start))
		}
	}()

	if err := w.ctx.Err(); err != nil {
		return Failure(KindCancelled, "execution cancelled")
	}

	out, err := w.exec.Execute(w.ctx, req)
	if err != nil {
		w.logger.Error("executor failed",
			slog.String("id", req.ID),
			slog.String("error", err.Error()),
		)
		return Failure(KindInternal, err.Error())
	}
	if out == nil {
		return Failure(KindInternal, "executor returned no result")
	}
	return out
}

func (w *Worker) deliver(res *ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("result callback panicked",
				slog.String("id", res.ID),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	w.logger.Debug("execution finished",
		slog.String("id", res.ID),
		slog.String("type", string(res.Type)),
		slog.Duration("duration", res.Duration()),
	)
	w.onResult(res)
}

// Package jsvm runs user-submitted JavaScript inside an embedded goja
// interpreter.
//
// Every run gets a brand-new runtime with no host objects, no module loader
// and no I/O; the only global added is a console that records output. The
// submitted text becomes the body of a function built by the runtime's own
// Function constructor, so it cannot close over anything from the host.
// Runs are bounded by a deadline and by the caller's context: either one
// interrupts the interpreter and the run ends with a failure result.
//
// goja has no heap limit. Memory is bounded only indirectly (deadline,
// output caps); use the docker backend when a hard cap is required.
package jsvm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	"github.com/sakif/js-playground/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

type interruptReason string

const stackOverflowMessage = "RangeError: Maximum call stack size exceeded"

const (
	interruptTimeout   interruptReason = "timeout"
	interruptCancelled interruptReason = "cancelled"
)

// Executor implements executor.Executor on top of goja.
type Executor struct {
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates an Executor and starts its runtime pool.
func New(cfg Config, logger *slog.Logger) *Executor {
	cfg = cfg.withDefaults()

	e := &Executor{
		config: cfg,
		logger: logger,
		pool:   NewPool(cfg, logger),
	}
	e.pool.Start()
	return e
}

// Close stops the runtime pool.
func (e *Executor) Close() error {
	e.pool.Stop()
	return nil
}

// Execute runs req.Code in a fresh runtime. Anything the code does ends in a
// result; the error return is reserved for invalid requests.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if err := executor.Validate(req); err != nil {
		return nil, err
	}

	start := time.Now()

	var res *executor.ExecutionResult
	var output []string

	sb, err := e.pool.Get(ctx)
	if err != nil {
		res = executor.Failure(executor.KindCancelled, "execution cancelled")
	} else {
		res = e.run(ctx, sb, req.Code)
		output = sb.out.lines
	}

	res.ID = req.ID
	res.Output = output
	res.SetDuration(time.Since(start))

	e.logger.Debug("javascript run finished",
		slog.String("id", req.ID),
		slog.String("type", string(res.Type)),
		slog.String("kind", string(res.Kind)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// run arms the deadline and the cancellation watcher around evaluate.
func (e *Executor) run(ctx context.Context, sb *sandbox, code string) *executor.ExecutionResult {
	vm := sb.vm

	timer := time.AfterFunc(e.config.Timeout, func() {
		vm.Interrupt(interruptTimeout)
	})
	defer timer.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(interruptCancelled)
		case <-stop:
		}
	}()

	return e.evaluate(sb, code)
}

func (e *Executor) evaluate(sb *sandbox, code string) (res *executor.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = e.fromPanic(r)
		}
	}()

	vm := sb.vm

	fn, err := vm.New(vm.Get("Function"), vm.ToValue(code))
	if err != nil {
		return e.fromError(err, executor.KindSyntax)
	}

	call, ok := goja.AssertFunction(fn)
	if !ok {
		return executor.Failure(executor.KindInternal, "compiled code is not callable")
	}

	v, err := call(goja.Undefined())
	if err != nil {
		return e.fromError(err, executor.KindRuntime)
	}

	if goja.IsNull(v) {
		return executor.SuccessNull()
	}
	return executor.Success(newConverter(sb).convert(v))
}

func (e *Executor) fromError(err error, kind executor.FailureKind) *executor.ExecutionResult {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return e.interrupted(interrupted.Value())
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return executor.Failure(executor.KindRuntime, stackOverflowMessage)
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return executor.Failure(kind, exceptionMessage(exc))
	}

	return executor.Failure(kind, err.Error())
}

func (e *Executor) fromPanic(r any) *executor.ExecutionResult {
	switch x := r.(type) {
	case *goja.InterruptedError:
		return e.interrupted(x.Value())
	case *goja.StackOverflowError:
		return executor.Failure(executor.KindRuntime, stackOverflowMessage)
	case *goja.Exception:
		return executor.Failure(executor.KindRuntime, exceptionMessage(x))
	}

	e.logger.Error("javascript runtime panicked", slog.String("panic", fmt.Sprint(r)))
	return executor.Failure(executor.KindInternal, fmt.Sprintf("interpreter panic: %v", r))
}

func (e *Executor) interrupted(reason any) *executor.ExecutionResult {
	if reason == interruptCancelled {
		return executor.Failure(executor.KindCancelled, "execution cancelled")
	}
	return executor.Failure(executor.KindTimeout,
		fmt.Sprintf("execution timed out after %s", e.config.Timeout))
}

// exceptionMessage extracts a human-readable message from a thrown value:
// its message property when it has one, String(value) otherwise.
func exceptionMessage(exc *goja.Exception) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = "uncaught exception"
		}
	}()

	val := exc.Value()
	if val == nil {
		return "uncaught exception"
	}
	switch v := val.(type) {
	case *goja.Object:
		if m := v.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	case *goja.Symbol:
		return symbolLabel(v)
	}
	return val.String()
}

// Package executor defines the contract between the host (HTTP, WebSocket,
// CLI) and the isolated contexts that run user-submitted JavaScript.
//
// A request carries source text; a result is a tagged union: either a
// success holding the value the code returned, or an error holding a
// human-readable message. Backends (jsvm, docker) implement Executor and
// Worker turns any Executor into a message-passing worker.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/js-playground/internal/apperror"
)

// MaxCodeLength caps the size of submitted source (~100KB).
const MaxCodeLength = 100000

// ResultType discriminates the ExecutionResult union on the wire.
type ResultType string

const (
	TypeSuccess ResultType = "success"
	TypeError   ResultType = "error"
)

// FailureKind classifies why an execution failed.
type FailureKind string

const (
	KindSyntax    FailureKind = "syntax"
	KindRuntime   FailureKind = "runtime"
	KindTimeout   FailureKind = "timeout"
	KindCancelled FailureKind = "cancelled"
	KindInternal  FailureKind = "internal"
	// KindInvalid marks a request rejected before it ran.
	KindInvalid FailureKind = "invalid"
)

// ExecutionRequest represents a request to execute JavaScript code.
type ExecutionRequest struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code"`
}

// ExecutionResult is the outcome of a single execution.
//
// Type is TypeSuccess with Result set, or TypeError with Error set. Result is
// a JSON-safe value: nil, bool, int64, float64, string, []any or
// map[string]any. Undefined marks a success whose code produced no value, so
// `return null` and `return;` stay distinguishable.
type ExecutionResult struct {
	ID         string      `json:"id,omitempty"`
	Type       ResultType  `json:"type"`
	Result     any         `json:"result,omitempty"`
	Undefined  bool        `json:"undefined,omitempty"`
	Error      string      `json:"error,omitempty"`
	Kind       FailureKind `json:"kind,omitempty"`
	Output     []string    `json:"output,omitempty"`
	DurationMS int64       `json:"durationMs"`
}

// Success builds a success result. A nil value is reported as undefined.
func Success(value any) *ExecutionResult {
	return &ExecutionResult{
		Type:      TypeSuccess,
		Result:    value,
		Undefined: value == nil,
	}
}

// SuccessNull builds a success result whose value is an explicit null.
func SuccessNull() *ExecutionResult {
	return &ExecutionResult{Type: TypeSuccess}
}

// Failure builds an error result. An empty message is replaced so callers
// never see an error result without text.
func Failure(kind FailureKind, message string) *ExecutionResult {
	if message == "" {
		message = fmt.Sprintf("%s error", kind)
	}
	return &ExecutionResult{
		Type:  TypeError,
		Error: message,
		Kind:  kind,
	}
}

// MarshalJSON always emits "result" for successes (null for both null and
// undefined) and never for errors.
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	type alias ExecutionResult
	if r.Type == TypeSuccess {
		return json.Marshal(struct {
			*alias
			Result any `json:"result"`
		}{(*alias)(&r), r.Result})
	}
	return json.Marshal((*alias)(&r))
}

// OK reports whether the result is a success.
func (r *ExecutionResult) OK() bool {
	return r.Type == TypeSuccess
}

// Duration returns the recorded execution time.
func (r *ExecutionResult) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// SetDuration records the execution time, rounded to milliseconds.
func (r *ExecutionResult) SetDuration(d time.Duration) {
	r.DurationMS = d.Milliseconds()
}

// Validate checks a request before it reaches an isolated context.
func Validate(req ExecutionRequest) error {
	if len(req.Code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	return nil
}

// Executor represents the core interface for running code in an isolated environment.
//
// Execute returns a non-nil result for anything the submitted code does,
// including syntax errors, thrown values and deadline overruns. A Go error
// means the backend itself could not run the request.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

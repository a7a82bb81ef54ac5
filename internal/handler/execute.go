package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/js-playground/internal/apperror"
	"github.com/sakif/js-playground/internal/executor"
)

// maxRequestBody leaves room for JSON framing and escapes around the code.
const maxRequestBody = 2*executor.MaxCodeLength + 4096

// ExecuteHandler handles synchronous code execution requests.
type ExecuteHandler struct {
	exec   executor.Executor
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler. exec may be nil, in which
// case every request is answered with 503.
func NewExecuteHandler(exec executor.Executor, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		exec:   exec,
		logger: logger,
	}
}

// HandleExecute runs one snippet under the request context.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"code": "return 2 + 2;"}
//
// Both success and error envelopes are sent with 200; the envelope "type"
// tells them apart. Only malformed requests get a 4xx.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	if h.exec == nil {
		writeError(w, apperror.Unavailable("code execution is not available"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req executor.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("code", "request body is too large"))
			return
		}
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := executor.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.exec.Execute(r.Context(), req)
	if err != nil {
		h.logger.Error("code execution failed", slog.String("error", err.Error()))
		result = executor.Failure(executor.KindInternal, "execution backend failed")
		result.ID = req.ID
	}

	writeJSON(w, http.StatusOK, result)
}

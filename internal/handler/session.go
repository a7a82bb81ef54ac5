package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/sakif/js-playground/internal/apperror"
	"github.com/sakif/js-playground/internal/executor"
	"github.com/sakif/js-playground/internal/metrics"
)

const sessionWriteTimeout = 10 * time.Second

// SessionHandler serves WebSocket execution sessions. Each connection owns
// its own executor.Worker, so results for one client come back in the order
// that client submitted them.
type SessionHandler struct {
	exec      executor.Executor
	logger    *slog.Logger
	metrics   *metrics.Collector
	queueSize int
}

// NewSessionHandler creates a new SessionHandler. collector may be nil.
func NewSessionHandler(exec executor.Executor, queueSize int, collector *metrics.Collector, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		exec:      exec,
		logger:    logger,
		metrics:   collector,
		queueSize: queueSize,
	}
}

// HandleSession upgrades the connection and runs the session read loop.
//
// HTTP: GET /api/execute/ws
// CLIENT → SERVER: {"id": "optional", "code": "return 1;"}
// SERVER → CLIENT: the result envelope, carrying the same id.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if h.exec == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "code execution is not available",
		})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(maxRequestBody)

	h.serve(r.Context(), conn)
}

func (h *SessionHandler) serve(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)

	if h.metrics != nil {
		h.metrics.ActiveSessions.Inc()
		defer h.metrics.ActiveSessions.Dec()
	}

	worker := executor.NewWorker(h.exec, func(res *executor.ExecutionResult) {
		h.send(ctx, conn, res)
	}, executor.WithQueueSize(h.queueSize), executor.WithLogger(h.logger))

	defer func() {
		// Stop writes first so results flushed by Abort fail fast.
		cancel()
		worker.Abort()
		conn.Close(websocket.StatusNormalClosure, "session closed")
	}()

	h.logger.Debug("execution session opened")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				h.logger.Debug("execution session closed")
			} else {
				h.logger.Warn("execution session error", slog.String("error", err.Error()))
			}
			return
		}

		var req executor.ExecutionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Warn("invalid session message", slog.String("error", err.Error()))
			h.send(ctx, conn, executor.Failure(executor.KindInvalid, "invalid request message"))
			continue
		}

		if _, err := worker.Submit(req); err != nil {
			kind := executor.KindInternal
			if errors.Is(err, apperror.ErrValidation) {
				kind = executor.KindInvalid
			}
			res := executor.Failure(kind, err.Error())
			res.ID = req.ID
			h.send(ctx, conn, res)
		}
	}
}

// send writes one envelope. coder/websocket allows concurrent writers, so the
// worker goroutine and the read loop can both call it.
func (h *SessionHandler) send(ctx context.Context, conn *websocket.Conn, res *executor.ExecutionResult) {
	data, err := json.Marshal(res)
	if err != nil {
		h.logger.Error("failed to encode session result", slog.String("error", err.Error()))
		return
	}

	wctx, cancel := context.WithTimeout(ctx, sessionWriteTimeout)
	defer cancel()

	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("failed to write session result",
			slog.String("id", res.ID),
			slog.String("error", err.Error()),
		)
	}
}

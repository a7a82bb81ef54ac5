package handler

import (
	"log/slog"
	"net/http"
)

// Pinger is anything that can report whether it is reachable.
type Pinger interface {
	Ping() error
}

// HealthHandler reports liveness of the server and its dependencies.
type HealthHandler struct {
	db      Pinger
	backend string
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. backend is the active execution
// backend name, or "" when none is available.
func NewHealthHandler(db Pinger, backend string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, backend: backend, logger: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Executor string `json:"executor"`
}

// HandleHealth answers GET /healthz. A failed database ping is a 503; a
// missing executor is reported but does not fail the check.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok", Executor: h.backend}
	if resp.Executor == "" {
		resp.Executor = "unavailable"
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			h.logger.Error("database health check failed", slog.String("error", err.Error()))
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

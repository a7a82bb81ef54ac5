package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/js-playground/internal/apperror"
	"github.com/sakif/js-playground/internal/service"
)

// ChecklistHandler exposes lesson checklist state over HTTP.
type ChecklistHandler struct {
	svc    *service.ChecklistService
	logger *slog.Logger
}

// NewChecklistHandler creates a new ChecklistHandler.
func NewChecklistHandler(svc *service.ChecklistService, logger *slog.Logger) *ChecklistHandler {
	return &ChecklistHandler{
		svc:    svc,
		logger: logger,
	}
}

// setChecklistRequest is the PUT body. Checked is a pointer so a missing
// field is rejected instead of read as false.
type setChecklistRequest struct {
	Checked *bool `json:"checked"`
}

// HandleList returns checklist items.
//
// HTTP: GET /api/checklist?prefix=arrays-&limit=50&offset=0
func (h *ChecklistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.svc.List(r.Context(), q.Get("prefix"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleGet returns one item.
//
// HTTP: GET /api/checklist/{key}
func (h *ChecklistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandlePut sets the checked state of an item, creating it if needed.
//
// HTTP: PUT /api/checklist/{key}
// REQUEST BODY: {"checked": true}
func (h *ChecklistHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req setChecklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid checklist JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Checked == nil {
		writeError(w, apperror.ValidationFailed("checked", "checked is required"))
		return
	}

	item, err := h.svc.Set(r.Context(), chi.URLParam(r, "key"), *req.Checked)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleDelete forgets an item.
//
// HTTP: DELETE /api/checklist/{key}
func (h *ChecklistHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(field, field+" must be an integer")
	}
	return n, nil
}

package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/js-playground/internal/handler"
	"github.com/sakif/js-playground/internal/model"
	sqliteRepo "github.com/sakif/js-playground/internal/repository/sqlite"
	"github.com/sakif/js-playground/internal/service"
)

func newChecklistRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := handler.NewChecklistHandler(service.NewChecklistService(db, testLogger()), testLogger())

	r := chi.NewRouter()
	r.Get("/api/checklist", h.HandleList)
	r.Get("/api/checklist/{key}", h.HandleGet)
	r.Put("/api/checklist/{key}", h.HandlePut)
	r.Delete("/api/checklist/{key}", h.HandleDelete)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestChecklistHandler_PutThenGet(t *testing.T) {
	router := newChecklistRouter(t)

	rr := do(t, router, http.MethodPut, "/api/checklist/arrays-push", `{"checked":true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var put model.ChecklistItem
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&put))
	assert.Equal(t, "arrays-push", put.Key)
	assert.True(t, put.Checked)
	assert.False(t, put.UpdatedAt.IsZero())

	rr = do(t, router, http.MethodGet, "/api/checklist/arrays-push", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.ChecklistItem
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, put.Key, got.Key)
	assert.True(t, got.Checked)
}

func TestChecklistHandler_List(t *testing.T) {
	router := newChecklistRouter(t)
	for _, key := range []string{"maps-b", "maps-a", "sets-a"} {
		rr := do(t, router, http.MethodPut, "/api/checklist/"+key, `{"checked":true}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	tests := []struct {
		name     string
		query    string
		wantKeys []string
	}{
		{"all", "", []string{"maps-a", "maps-b", "sets-a"}},
		{"prefix", "?prefix=maps-", []string{"maps-a", "maps-b"}},
		{"paged", "?limit=1&offset=1", []string{"maps-b"}},
		{"no match", "?prefix=zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, http.MethodGet, "/api/checklist"+tt.query, "")
			require.Equal(t, http.StatusOK, rr.Code)

			var items []model.ChecklistItem
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&items))
			keys := []string{}
			for _, it := range items {
				keys = append(keys, it.Key)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestChecklistHandler_Errors(t *testing.T) {
	router := newChecklistRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"get missing", http.MethodGet, "/api/checklist/missing", "", http.StatusNotFound, "not_found"},
		{"delete missing", http.MethodDelete, "/api/checklist/missing", "", http.StatusNotFound, "not_found"},
		{"put bad json", http.MethodPut, "/api/checklist/k", `{"checked":`, http.StatusBadRequest, "validation_error"},
		{"put missing field", http.MethodPut, "/api/checklist/k", `{}`, http.StatusBadRequest, "validation_error"},
		{"put whitespace key", http.MethodPut, "/api/checklist/a%20b", `{"checked":true}`, http.StatusBadRequest, "validation_error"},
		{"list bad limit", http.MethodGet, "/api/checklist?limit=ten", "", http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)

			var body handler.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestChecklistHandler_Delete(t *testing.T) {
	router := newChecklistRouter(t)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/api/checklist/k", `{"checked":false}`).Code)

	rr := do(t, router, http.MethodDelete, "/api/checklist/k", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/checklist/k", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         handler.Pinger
		backend    string
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "healthy",
			db:         fakePinger{},
			backend:    "jsvm",
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "ok", "database": "ok", "executor": "jsvm"},
		},
		{
			name:       "no executor",
			db:         fakePinger{},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "ok", "database": "ok", "executor": "unavailable"},
		},
		{
			name:       "database down",
			db:         fakePinger{err: errors.New("closed")},
			backend:    "docker",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"status": "degraded", "database": "unreachable", "executor": "docker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.db, tt.backend, testLogger())
			rr := httptest.NewRecorder()
			h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

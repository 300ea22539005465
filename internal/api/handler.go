// Package api exposes the visualization pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridviz/gridviz/internal/catalog"
	"github.com/gridviz/gridviz/internal/pipeline"
	"github.com/gridviz/gridviz/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Runner drives one visualization request through the pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) *pipeline.State
}

// RecordStore is the read side of the durable visualization store.
type RecordStore interface {
	GetVisualization(id string) (storage.Visualization, error)
	ListVisualizations(userID int64, limit, offset int) ([]storage.Visualization, error)
	ListPanelBindings(userID int64) ([]storage.PanelBinding, error)
	ListOrphans(limit int) ([]storage.OrphanArtifact, error)
}

type AppDeps struct {
	Runner  Runner
	Store   RecordStore
	Catalog *catalog.Catalog
	Token   string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		// An empty token leaves the API open; the server refuses to
		// bind beyond loopback in that case.
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/api/visualizations", handleCreateVisualization(deps))
		r.Get("/api/visualizations", handleListVisualizations(deps))
		r.Get("/api/visualizations/{id}", handleGetVisualization(deps))
		r.Get("/api/dashboard/panels", handleListPanels(deps))
		r.Get("/api/orphans", handleListOrphans(deps))
		r.Get("/api/data-sources", handleListDataSources(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleCreateVisualization(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req pipeline.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		state := deps.Runner.Run(r.Context(), req)
		writeJSON(w, statusCodeFor(state), state)
	}
}

// statusCodeFor maps a terminal pipeline state to an HTTP status:
// 201 for success, 400 when the request itself was unusable, 422 for
// everything that failed mid-pipeline.
func statusCodeFor(state *pipeline.State) int {
	if state.Succeeded() {
		return http.StatusCreated
	}
	for _, f := range state.Failures {
		if f.Kind == pipeline.FailRequestInvalid {
			return http.StatusBadRequest
		}
	}
	return http.StatusUnprocessableEntity
}

func handleListVisualizations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUserID(w, r)
		if !ok {
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 1<<30)

		vizzes, err := deps.Store.ListVisualizations(userID, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list visualizations: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"visualizations": vizzes})
	}
}

func handleGetVisualization(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		viz, err := deps.Store.GetVisualization(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "visualization not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get visualization: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viz)
	}
}

func handleListPanels(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseUserID(w, r)
		if !ok {
			return
		}

		bindings, err := deps.Store.ListPanelBindings(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list panel bindings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"panels": bindings})
	}
}

func handleListOrphans(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)

		orphans, err := deps.Store.ListOrphans(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list orphans: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orphans": orphans})
	}
}

func handleListDataSources(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data_sources": deps.Catalog.Sources()})
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid user_id %q", raw)
		return 0, false
	}
	return userID, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

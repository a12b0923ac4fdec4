// Package api exposes run management over HTTP for the server command.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maltedev/bidgrid-scraper/internal/jobs"
)

type Handlers struct {
	jobs              *jobs.Manager
	defaultCategories []string
	logger            *slog.Logger
}

func NewHandlers(manager *jobs.Manager, defaultCategories []string, logger *slog.Logger) *Handlers {
	return &Handlers{
		jobs:              manager,
		defaultCategories: defaultCategories,
		logger:            logger.With("component", "api"),
	}
}

type createRunRequest struct {
	Categories []string `json:"categories"`
}

// CreateRun enqueues an extraction run. Categories default to the
// configured set when omitted.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = h.defaultCategories
	}

	job, err := h.jobs.Enqueue(categories)
	if err != nil {
		h.logger.Error("failed to enqueue run", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "could not enqueue run")
		return
	}

	h.writeJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	job, ok := h.jobs.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.jobs.List())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

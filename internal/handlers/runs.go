package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carrier-reports/internal/profiles"
	"carrier-reports/internal/workers"
)

const maxRunsLimit = 200

// RunHandler handles run history and manual triggers
type RunHandler struct {
	runs      RunReader
	scheduler Scheduler
	logger    *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunReader, scheduler Scheduler, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, scheduler: scheduler, logger: logger}
}

// GetRuns handles GET /api/runs?profile=&limit=
func (h *RunHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.ListRecent(r.URL.Query().Get("profile"), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.runs.GetByID(id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// TriggerRun handles POST /api/profiles/{name}/run?force=true
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	run, err := h.scheduler.Trigger(name, force)
	var limitErr *workers.RateLimitError
	switch {
	case err == nil:
		h.logger.Info("Run triggered via API", "profile", name, "run_id", run.ID, "force", force)
		writeJSON(w, http.StatusAccepted, run)
	case errors.Is(err, profiles.ErrNotFound):
		writeError(w, http.StatusNotFound, "Profile not found: "+name)
	case errors.Is(err, workers.ErrNoPortal):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workers.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &limitErr):
		seconds := int(math.Ceil(limitErr.RemainingTime.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, workers.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("Failed to trigger run", "profile", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to trigger run")
	}
}

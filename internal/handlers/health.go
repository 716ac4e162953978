package handlers

import (
	"net/http"

	"carrier-reports/internal/api"
	"carrier-reports/internal/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *database.DB
	scheduler Scheduler
}

// NewHealthHandler creates a new health handler. scheduler may be nil.
func NewHealthHandler(db *database.DB, scheduler Scheduler) *HealthHandler {
	return &HealthHandler{db: db, scheduler: scheduler}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := api.HealthResponse{
		Status:   "healthy",
		Database: "ok",
	}
	if h.scheduler != nil {
		response.Sync = syncStatus(h.scheduler)
	}

	if err := h.db.IsHealthy(); err != nil {
		response.Status = "unhealthy"
		response.Database = "error"
		response.Message = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

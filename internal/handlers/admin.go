package handlers

import (
	"log/slog"
	"net/http"

	"carrier-reports/internal/api"
	"carrier-reports/internal/database"
)

// Scheduler is the part of the sync scheduler the API drives
type Scheduler interface {
	Trigger(name string, force bool) (*database.Run, error)
	Pause()
	Resume()
	IsPaused() bool
	IsRunning() bool
}

// AdminHandler handles administrative operations
type AdminHandler struct {
	scheduler Scheduler
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(scheduler Scheduler, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

func syncStatus(s Scheduler) *api.SyncStatus {
	return &api.SyncStatus{Running: s.IsRunning(), Paused: s.IsPaused()}
}

// GetSyncStatus handles GET /api/sync/status
func (h *AdminHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, syncStatus(h.scheduler))
}

// PauseSync handles POST /api/sync/pause
func (h *AdminHandler) PauseSync(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Pause()
	h.logger.Info("Scheduled sync paused via API")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "paused",
		"message": "Scheduled sync has been paused",
	})
}

// ResumeSync handles POST /api/sync/resume
func (h *AdminHandler) ResumeSync(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Resume()
	h.logger.Info("Scheduled sync resumed via API")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "resumed",
		"message": "Scheduled sync has been resumed",
	})
}

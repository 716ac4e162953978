package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carrier-reports/internal/api"
	"carrier-reports/internal/database"
	"carrier-reports/internal/profiles"
)

// RunReader is the read side of the run store
type RunReader interface {
	GetByID(id string) (*database.Run, error)
	ListRecent(profile string, limit int) ([]database.Run, error)
	LastByProfile(profile string) (*database.Run, error)
}

// ProfileHandler serves the configured profiles
type ProfileHandler struct {
	registry *profiles.Registry
	runs     RunReader
	logger   *slog.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(registry *profiles.Registry, runs RunReader, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{registry: registry, runs: runs, logger: logger}
}

func (h *ProfileHandler) summarize(p *profiles.Profile) api.ProfileSummary {
	summary := api.ProfileSummary{
		Profile:   p,
		Enabled:   p.IsEnabled(),
		HasPortal: p.HasPortal(),
	}
	last, err := h.runs.LastByProfile(p.Name)
	if err != nil {
		h.logger.Warn("Failed to load last run", "profile", p.Name, "error", err)
	}
	summary.LastRun = last
	return summary
}

// GetProfiles handles GET /api/profiles
func (h *ProfileHandler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	summaries := make([]api.ProfileSummary, 0, len(list))
	for _, p := range list {
		summaries = append(summaries, h.summarize(p))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetProfile handles GET /api/profiles/{name}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := lookupProfile(w, h.registry, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.summarize(p))
}

func lookupProfile(w http.ResponseWriter, registry *profiles.Registry, name string) (*profiles.Profile, bool) {
	p, err := registry.Get(name)
	if errors.Is(err, profiles.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found: "+name)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return p, true
}

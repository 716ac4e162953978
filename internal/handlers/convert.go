package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carrier-reports/internal/api"
	"carrier-reports/internal/artifact"
	"carrier-reports/internal/database"
	"carrier-reports/internal/pipeline"
	"carrier-reports/internal/profiles"
)

// ArtifactRunner uploads a caller-supplied report as a recorded run
type ArtifactRunner interface {
	RunArtifact(ctx context.Context, profile *profiles.Profile, a artifact.RawArtifact) (*database.Run, error)
}

// ConvertHandler converts uploaded report files
type ConvertHandler struct {
	registry  *profiles.Registry
	processor *pipeline.Processor
	runner    ArtifactRunner
	maxUpload int64
	logger    *slog.Logger
}

// NewConvertHandler creates a new convert handler
func NewConvertHandler(registry *profiles.Registry, processor *pipeline.Processor, runner ArtifactRunner, maxUpload int64, logger *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		registry:  registry,
		processor: processor,
		runner:    runner,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Sniff handles POST /api/sniff
func (h *ConvertHandler) Sniff(w http.ResponseWriter, r *http.Request) {
	a, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, artifact.Describe(a))
}

// Convert handles POST /api/profiles/{name}/convert. With upload=true the
// result is written to the profile's destination and the run is returned;
// with format=csv the table is returned as CSV.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	p, ok := lookupProfile(w, h.registry, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	a, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	if upload, _ := strconv.ParseBool(r.URL.Query().Get("upload")); upload {
		if h.runner == nil {
			writeError(w, http.StatusServiceUnavailable, "Uploads are not configured")
			return
		}
		run, err := h.runner.RunArtifact(r.Context(), p, a)
		if err != nil {
			h.logger.Error("Failed to record conversion run", "profile", p.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to record run")
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	result := h.processor.Process(a, p)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+p.Name+`.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := csv.NewWriter(w).WriteAll(result.Table.Records()); err != nil {
			h.logger.Warn("Failed to write CSV response", "profile", p.Name, "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, api.NewConvertResponse(p.Name, result))
}

// readUpload reads the multipart "file" field, bounded by the upload limit
func (h *ConvertHandler) readUpload(w http.ResponseWriter, r *http.Request) (artifact.RawArtifact, bool) {
	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
		return artifact.RawArtifact{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
			return artifact.RawArtifact{}, false
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart upload with a \"file\" field")
		return artifact.RawArtifact{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return artifact.RawArtifact{}, false
	}

	return artifact.New(header.Filename, data), true
}

// Package api holds the JSON bodies exchanged between the server and the CLI.
package api

import (
	"carrier-reports/internal/artifact"
	"carrier-reports/internal/database"
	"carrier-reports/internal/pipeline"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/reconcile"
)

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SyncStatus represents the state of the sync scheduler
type SyncStatus struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Sync     *SyncStatus `json:"sync,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// ProfileSummary is a profile as exposed over the API
type ProfileSummary struct {
	*profiles.Profile
	Enabled   bool          `json:"enabled"`
	HasPortal bool          `json:"has_portal"`
	LastRun   *database.Run `json:"last_run,omitempty"`
}

// ConvertResponse is the JSON form of a converted report
type ConvertResponse struct {
	Profile       string            `json:"profile"`
	Artifact      artifact.Info     `json:"artifact"`
	SourceRows    int               `json:"source_rows"`
	SourceColumns []string          `json:"source_columns"`
	Columns       []string          `json:"columns"`
	Rows          [][]string        `json:"rows"`
	Matches       []reconcile.Match `json:"matches"`
	Missing       []string          `json:"missing"`
}

// NewConvertResponse flattens a pipeline result for JSON output
func NewConvertResponse(profile string, result *pipeline.Result) ConvertResponse {
	missing := result.Missing()
	if missing == nil {
		missing = []string{}
	}
	return ConvertResponse{
		Profile:       profile,
		Artifact:      result.Artifact,
		SourceRows:    result.SourceRows,
		SourceColumns: result.Columns,
		Columns:       result.Table.Columns,
		Rows:          result.Table.Rows,
		Matches:       result.Table.Matches,
		Missing:       missing,
	}
}

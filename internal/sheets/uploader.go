// Package sheets delivers reconciled tables to their destination: a Google
// Sheets range, or a local CSV/XLSX file when Sheets is not configured.
package sheets

import (
	"context"
	"strings"

	"carrier-reports/internal/profiles"
)

// Uploader writes a header row plus data rows to a destination, replacing
// whatever was there. It returns a description of where the rows went.
type Uploader interface {
	Upload(ctx context.Context, dest profiles.Destination, records [][]string) (string, error)
}

// Router sends file destinations to the file uploader and everything else to
// Sheets when it is configured.
type Router struct {
	sheets Uploader
	files  Uploader
}

// NewRouter creates a router. sheets may be nil.
func NewRouter(sheets, files Uploader) *Router {
	return &Router{sheets: sheets, files: files}
}

// Upload implements Uploader
func (r *Router) Upload(ctx context.Context, dest profiles.Destination, records [][]string) (string, error) {
	if dest.File == "" && r.sheets != nil {
		return r.sheets.Upload(ctx, dest, records)
	}
	return r.files.Upload(ctx, dest, records)
}

// sheetName returns the sheet part of an A1 range, without quotes
func sheetName(rng string) string {
	name, _, found := strings.Cut(rng, "!")
	if !found {
		return strings.Trim(rng, "'")
	}
	return strings.Trim(name, "'")
}

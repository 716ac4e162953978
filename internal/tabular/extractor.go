package tabular

import (
	"fmt"
	"log/slog"

	"carrier-reports/internal/artifact"
)

// Extractor turns a classified artifact into a Table. It never returns an
// error: anything unreadable becomes an empty table and a warning.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor that reports swallowed failures to logger.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract dispatches on kind. The artifact's claimed extension is ignored here.
func (e *Extractor) Extract(a artifact.RawArtifact, kind artifact.FormatKind) (table *Table) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction panicked", "artifact", a.Name, "kind", kind, "panic", fmt.Sprint(r))
			table = Empty()
		}
	}()

	if a.Empty() {
		return Empty()
	}

	var (
		t   *Table
		err error
	)
	switch kind {
	case artifact.KindTabularHTML:
		t, err = parseHTML(a.Data)
	case artifact.KindDelimitedText:
		t, err = parseCSV(a.Data)
	case artifact.KindModernSpreadsheet, artifact.KindLegacySpreadsheet:
		t, err = e.parseSpreadsheet(a, kind)
	default:
		if !artifact.HasHTMLMarkers(a.Data) {
			e.logger.Debug("unknown artifact has no html markers", "artifact", a.Name)
			return Empty()
		}
		t, err = parseHTML(a.Data)
	}

	if err != nil {
		e.logger.Warn("failed to extract table", "artifact", a.Name, "kind", kind, "error", err)
		return Empty()
	}
	if t == nil {
		return Empty()
	}
	return t
}

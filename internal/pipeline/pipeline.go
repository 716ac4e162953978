// Package pipeline chains format detection, extraction, reconciliation and
// normalization into one call that always yields a schema-shaped table.
package pipeline

import (
	"log/slog"

	"carrier-reports/internal/artifact"
	"carrier-reports/internal/normalize"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/reconcile"
	"carrier-reports/internal/tabular"
)

// Result is the outcome of processing one artifact.
type Result struct {
	Artifact   artifact.Info    `json:"artifact"`
	SourceRows int              `json:"source_rows"`
	Columns    []string         `json:"source_columns"`
	Table      *reconcile.Table `json:"table"`
}

// Missing lists canonical columns that were filled with empty values.
func (r *Result) Missing() []string {
	return r.Table.Missing()
}

// Processor runs artifacts through the conversion stages.
type Processor struct {
	extractor *tabular.Extractor
	logger    *slog.Logger
}

// NewProcessor creates a processor that logs soft failures to logger.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor: tabular.NewExtractor(logger),
		logger:    logger,
	}
}

// Process converts a raw download into the profile's schema. It never fails:
// an unreadable artifact produces a header-only table.
func (p *Processor) Process(a artifact.RawArtifact, profile *profiles.Profile) *Result {
	info := artifact.Describe(a)
	logger := p.logger.With("profile", profile.Name, "artifact", a.Name)

	table := p.extractor.Extract(a, info.Kind)
	logger.Debug("extracted table",
		"kind", info.Kind,
		"mime", info.MIME,
		"columns", len(table.Columns),
		"rows", len(table.Rows))

	reconciled := reconcile.Reconcile(table, profile.TargetSchema(), profile.AliasTable())
	for _, m := range reconciled.Matches {
		switch {
		case !m.Found:
			logger.Warn("canonical column not found, filling with empty values", "column", m.Canonical)
		case m.Strategy == reconcile.StrategySubstring:
			logger.Info("column matched by substring", "column", m.Canonical, "source", m.Source)
		}
	}

	return &Result{
		Artifact:   info,
		SourceRows: len(table.Rows),
		Columns:    table.Columns,
		Table:      normalize.Normalize(reconciled, profile.Rules),
	}
}

// EmptyResult is the placeholder used when no artifact could be obtained.
func EmptyResult(profile *profiles.Profile) *Result {
	return &Result{
		Artifact: artifact.Info{Kind: artifact.KindUnknown},
		Columns:  []string{},
		Table:    reconcile.Reconcile(tabular.Empty(), profile.TargetSchema(), profile.AliasTable()),
	}
}

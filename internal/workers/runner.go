package workers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"carrier-reports/internal/artifact"
	"carrier-reports/internal/config"
	"carrier-reports/internal/database"
	"carrier-reports/internal/pipeline"
	"carrier-reports/internal/portals"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/sheets"
)

const uploadTimeout = 2 * time.Minute

// Collector fetches a profile's report from its portal
type Collector interface {
	Collect(ctx context.Context, profile *profiles.Profile, creds portals.Credentials, from, to time.Time) (*artifact.RawArtifact, error)
}

// RunStore persists run history
type RunStore interface {
	Create(run *database.Run) error
	Finish(run *database.Run) error
	LastByProfile(profile string) (*database.Run, error)
}

// Runner executes one collect, convert and upload cycle for a profile and
// records the outcome
type Runner struct {
	config    *config.Config
	collector Collector
	processor *pipeline.Processor
	uploader  sheets.Uploader
	runs      RunStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a new runner
func NewRunner(cfg *config.Config, collector Collector, processor *pipeline.Processor, uploader sheets.Uploader, runs RunStore, logger *slog.Logger) *Runner {
	return &Runner{
		config:    cfg,
		collector: collector,
		processor: processor,
		uploader:  uploader,
		runs:      runs,
		logger:    logger,
		now:       time.Now,
	}
}

// Begin records a new run in the running state
func (r *Runner) Begin(profile *profiles.Profile, trigger string) (*database.Run, error) {
	run := &database.Run{Profile: profile.Name, Trigger: trigger}
	if err := r.runs.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Run collects the profile's report from its portal and uploads it
func (r *Runner) Run(ctx context.Context, profile *profiles.Profile, trigger string) (*database.Run, error) {
	run, err := r.Begin(profile, trigger)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, run, profile, nil), nil
}

// RunArtifact converts and uploads a file supplied by the caller instead of
// collecting one
func (r *Runner) RunArtifact(ctx context.Context, profile *profiles.Profile, a artifact.RawArtifact) (*database.Run, error) {
	run, err := r.Begin(profile, database.TriggerManual)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, run, profile, &a), nil
}

// Execute finishes a run begun with Begin. A nil artifact is collected from
// the portal. Any failure before upload falls back to a header-only table so
// the destination always ends up with the schema's header row.
func (r *Runner) Execute(ctx context.Context, run *database.Run, profile *profiles.Profile, supplied *artifact.RawArtifact) *database.Run {
	logger := r.logger.With("run_id", run.ID, "profile", profile.Name, "trigger", run.Trigger)
	logger.Info("Starting report run")

	var problems []string
	a := supplied
	if a == nil {
		from, to := profile.Window(r.now())
		collected, err := r.collector.Collect(ctx, profile, r.credentials(profile.Name), from, to)
		if err != nil {
			logger.Error("Failed to collect report", "error", err)
			problems = append(problems, "collect: "+err.Error())
		} else {
			a = collected
		}
	}

	var result *pipeline.Result
	if a != nil {
		result = r.processor.Process(*a, profile)
		if result.SourceRows == 0 {
			logger.Warn("No rows extracted from report", "artifact", a.Name, "kind", result.Artifact.Kind)
			problems = append(problems, "no rows extracted from "+a.Name)
		}
	} else {
		result = pipeline.EmptyResult(profile)
	}

	run.ArtifactName = result.Artifact.Name
	run.Format = result.Artifact.Kind.String()
	run.MIME = result.Artifact.MIME
	run.SourceRows = result.SourceRows
	run.OutputRows = len(result.Table.Rows)
	run.MissingColumns = result.Missing()

	// The upload still runs when collection used up the run's deadline
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
	defer cancel()

	location, err := r.uploader.Upload(uploadCtx, profile.Destination, result.Table.Records())
	switch {
	case err != nil:
		logger.Error("Failed to upload report", "error", err)
		problems = append(problems, "upload: "+err.Error())
		run.Status = database.StatusFailed
	case len(problems) > 0 || len(run.MissingColumns) > 0:
		run.Status = database.StatusDegraded
	default:
		run.Status = database.StatusSuccess
	}
	run.Destination = location
	run.Error = strings.Join(problems, "; ")

	if err := r.runs.Finish(run); err != nil {
		logger.Error("Failed to record run outcome", "error", err)
	}

	logger.Info("Completed report run",
		"status", run.Status,
		"rows", run.OutputRows,
		"missing_columns", len(run.MissingColumns),
		"destination", run.Destination)

	return run
}

func (r *Runner) credentials(profile string) portals.Credentials {
	cred := r.config.CredentialsFor(profile)
	return portals.Credentials{Username: cred.Username, Password: cred.Password}
}

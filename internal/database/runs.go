package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// Run triggers
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Run records one collect, convert and upload attempt for a profile
type Run struct {
	ID             string     `json:"id"`
	Profile        string     `json:"profile"`
	Trigger        string     `json:"trigger"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ArtifactName   string     `json:"artifact_name"`
	Format         string     `json:"format"`
	MIME           string     `json:"mime"`
	SourceRows     int        `json:"source_rows"`
	OutputRows     int        `json:"output_rows"`
	MissingColumns []string   `json:"missing_columns"`
	Destination    string     `json:"destination"`
	Error          string     `json:"error,omitempty"`
}

// Finished reports whether the run has reached a terminal status
func (r *Run) Finished() bool {
	return r.Status != StatusRunning
}

// Duration returns how long the run took, or has taken so far
func (r *Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// RunStore handles database operations for runs
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new run store
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = `id, profile, trigger, status, started_at, finished_at,
	artifact_name, format, mime, source_rows, output_rows, missing_columns,
	destination, error`

// Create inserts a new run in the running state. ID and StartedAt are
// assigned when empty.
func (s *RunStore) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Trigger == "" {
		run.Trigger = TriggerManual
	}
	run.Status = StatusRunning
	run.FinishedAt = nil

	query := `INSERT INTO runs (id, profile, trigger, status, started_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, run.ID, run.Profile, run.Trigger, run.Status, run.StartedAt); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Finish stores the outcome of a run and stamps its finish time
func (s *RunStore) Finish(run *Run) error {
	if run.Status == "" || run.Status == StatusRunning {
		return fmt.Errorf("run %s has no terminal status", run.ID)
	}

	missing, err := encodeColumns(run.MissingColumns)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `UPDATE runs SET status = ?, finished_at = ?, artifact_name = ?, format = ?,
			  mime = ?, source_rows = ?, output_rows = ?, missing_columns = ?,
			  destination = ?, error = ?
			  WHERE id = ?`

	result, err := s.db.Exec(query, run.Status, now, run.ArtifactName, run.Format,
		run.MIME, run.SourceRows, run.OutputRows, missing, run.Destination, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	run.FinishedAt = &now
	return nil
}

// GetByID returns a run by ID
func (s *RunStore) GetByID(id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	return scanRun(s.db.QueryRow(query, id))
}

// ListRecent returns the most recent runs, newest first. A non-empty
// profile restricts the list to that profile.
func (s *RunStore) ListRecent(profile string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if profile != "" {
		query += ` WHERE profile = ?`
		args = append(args, profile)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// LastByProfile returns the most recent run for a profile, or nil when the
// profile has never run
func (s *RunStore) LastByProfile(profile string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE profile = ? ORDER BY started_at DESC LIMIT 1`
	run, err := scanRun(s.db.QueryRow(query, profile))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// MarkInterrupted fails runs left in the running state by a previous
// process. It returns the number of runs updated.
func (s *RunStore) MarkInterrupted() (int64, error) {
	result, err := s.db.Exec(`UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE status = ?`,
		StatusFailed, time.Now().UTC(), "interrupted by shutdown", StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var finishedAt sql.NullTime
	var missing string

	err := row.Scan(&run.ID, &run.Profile, &run.Trigger, &run.Status, &run.StartedAt,
		&finishedAt, &run.ArtifactName, &run.Format, &run.MIME, &run.SourceRows,
		&run.OutputRows, &missing, &run.Destination, &run.Error)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	run.MissingColumns, err = decodeColumns(missing)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func encodeColumns(columns []string) (string, error) {
	if len(columns) == 0 {
		return "", nil
	}
	data, err := json.Marshal(columns)
	if err != nil {
		return "", fmt.Errorf("failed to encode missing columns: %w", err)
	}
	return string(data), nil
}

func decodeColumns(value string) ([]string, error) {
	columns := []string{}
	if value == "" {
		return columns, nil
	}
	if err := json.Unmarshal([]byte(value), &columns); err != nil {
		return nil, fmt.Errorf("failed to decode missing columns: %w", err)
	}
	return columns, nil
}

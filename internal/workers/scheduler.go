package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"carrier-reports/internal/config"
	"carrier-reports/internal/database"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/ratelimit"
)

var (
	// ErrNoPortal is returned when a profile has no portal script to run
	ErrNoPortal = errors.New("profile has no portal script")
	// ErrRunInProgress is returned when the profile is already running
	ErrRunInProgress = errors.New("a run for this profile is already in progress")
	// ErrStopped is returned once the scheduler has been stopped
	ErrStopped = errors.New("scheduler is stopped")
)

// RateLimitError reports a trigger refused because the profile ran recently
type RateLimitError struct {
	Profile       string
	RemainingTime time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("profile %s ran recently, retry in %s", e.Profile, e.RemainingTime.Round(time.Second))
}

// SyncScheduler runs every enabled profile on an interval and serves manual
// triggers, one run per profile at a time
type SyncScheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	config   *config.Config
	registry *profiles.Registry
	runner   *Runner
	runs     RunStore
	paused   atomic.Bool
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool

	// lifecycle orders wg.Add in Trigger against cancel in Stop
	lifecycle sync.Mutex
	wg        sync.WaitGroup
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(cfg *config.Config, registry *profiles.Registry, runner *Runner, runs RunStore, logger *slog.Logger) *SyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncScheduler{
		ctx:      ctx,
		cancel:   cancel,
		config:   cfg,
		registry: registry,
		runner:   runner,
		runs:     runs,
		logger:   logger,
		inFlight: map[string]bool{},
	}
}

// Start begins the periodic sync loop
func (s *SyncScheduler) Start() {
	if !s.config.SyncEnabled {
		s.logger.Info("Scheduled sync is disabled, skipping background runs")
		return
	}

	s.logger.Info("Starting sync scheduler",
		"interval", s.config.SyncInterval,
		"initial_delay", s.config.SyncInitialDelay,
		"profiles", len(s.registry.Names()))

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if !s.IsRunning() {
		return
	}
	s.wg.Add(1)
	go s.syncLoop()
}

// Stop cancels in-flight runs and waits for them to record their outcome
func (s *SyncScheduler) Stop() {
	s.logger.Info("Stopping sync scheduler")
	s.lifecycle.Lock()
	s.cancel()
	s.lifecycle.Unlock()
	s.wg.Wait()
}

// Pause temporarily pauses scheduled runs. Manual triggers still work.
func (s *SyncScheduler) Pause() {
	s.paused.Store(true)
	s.logger.Info("Sync scheduler paused")
}

// Resume resumes scheduled runs
func (s *SyncScheduler) Resume() {
	s.paused.Store(false)
	s.logger.Info("Sync scheduler resumed")
}

// IsPaused returns true if the scheduler is currently paused
func (s *SyncScheduler) IsPaused() bool {
	return s.paused.Load()
}

// IsRunning returns true until the scheduler is stopped
func (s *SyncScheduler) IsRunning() bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
		return true
	}
}

// Trigger starts a run of the named profile in the background and returns
// its record. Unless forced, a profile that ran within the minimum interval
// is refused with a *RateLimitError.
func (s *SyncScheduler) Trigger(name string, force bool) (*database.Run, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.IsRunning() {
		return nil, ErrStopped
	}

	profile, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if !profile.HasPortal() {
		return nil, ErrNoPortal
	}

	if err := s.checkRateLimit(profile.Name, force); err != nil {
		return nil, err
	}

	if !s.acquire(profile.Name) {
		return nil, ErrRunInProgress
	}

	run, err := s.runner.Begin(profile, database.TriggerManual)
	if err != nil {
		s.release(profile.Name)
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(profile.Name)

		ctx, cancel := context.WithTimeout(s.ctx, s.config.RunTimeout)
		defer cancel()
		s.runner.Execute(ctx, run, profile, nil)
	}()

	return run, nil
}

func (s *SyncScheduler) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	initialDelay := time.NewTimer(s.config.SyncInitialDelay)
	defer initialDelay.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Sync scheduler stopped")
			return

		case <-initialDelay.C:
			s.runAll()

		case <-ticker.C:
			s.runAll()
		}
	}
}

// runAll runs every enabled profile with a portal script, one after another
func (s *SyncScheduler) runAll() {
	if s.paused.Load() {
		s.logger.Debug("Sync paused, skipping cycle")
		return
	}

	s.logger.Info("Starting scheduled sync")
	startTime := time.Now()
	ran := 0

	for _, profile := range s.registry.List() {
		if s.ctx.Err() != nil || s.paused.Load() {
			break
		}
		if !profile.IsEnabled() || !profile.HasPortal() {
			continue
		}
		if s.runScheduled(profile) {
			ran++
		}
	}

	s.logger.Info("Completed scheduled sync", "runs", ran, "duration", time.Since(startTime))
}

func (s *SyncScheduler) runScheduled(profile *profiles.Profile) bool {
	if err := s.checkRateLimit(profile.Name, false); err != nil {
		s.logger.Debug("Skipping profile", "profile", profile.Name, "reason", err)
		return false
	}
	if !s.acquire(profile.Name) {
		s.logger.Debug("Skipping profile with a run in progress", "profile", profile.Name)
		return false
	}
	defer s.release(profile.Name)

	ctx, cancel := context.WithTimeout(s.ctx, s.config.RunTimeout)
	defer cancel()

	if _, err := s.runner.Run(ctx, profile, database.TriggerScheduled); err != nil {
		s.logger.Error("Failed to start scheduled run", "profile", profile.Name, "error", err)
		return false
	}
	return true
}

func (s *SyncScheduler) checkRateLimit(profile string, force bool) error {
	var lastStarted *time.Time
	last, err := s.runs.LastByProfile(profile)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	if last != nil {
		lastStarted = &last.StartedAt
	}

	result := ratelimit.CheckRunRateLimit(s.config, lastStarted, force)
	s.logger.Debug("Rate limit check", "profile", profile, "reason", result.Reason)
	if result.ShouldBlock {
		return &RateLimitError{Profile: profile, RemainingTime: result.RemainingTime}
	}
	return nil
}

func (s *SyncScheduler) acquire(profile string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[profile] {
		return false
	}
	s.inFlight[profile] = true
	return true
}

func (s *SyncScheduler) release(profile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, profile)
}

package portals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"carrier-reports/internal/artifact"
	"carrier-reports/internal/profiles"
)

const (
	defaultTargetTimeout   = 10 * time.Second
	defaultDownloadTimeout = 2 * time.Minute
)

// Collector drives a profile's portal script and returns the exported file
type Collector struct {
	pool            *BrowserPool
	logger          *slog.Logger
	downloadTimeout time.Duration
	targetTimeout   time.Duration
}

// NewCollector creates a collector on top of a browser pool
func NewCollector(pool *BrowserPool, downloadTimeout time.Duration, logger *slog.Logger) *Collector {
	if downloadTimeout <= 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	return &Collector{
		pool:            pool,
		logger:          logger,
		downloadTimeout: downloadTimeout,
		targetTimeout:   defaultTargetTimeout,
	}
}

// Collect logs into the profile's portal, runs its steps and returns the
// downloaded report for the window [from, to].
func (c *Collector) Collect(ctx context.Context, profile *profiles.Profile, creds Credentials, from, to time.Time) (*artifact.RawArtifact, error) {
	if !profile.HasPortal() {
		return nil, &PortalError{Profile: profile.Name, Code: CodeNoScript, Message: "profile has no portal script"}
	}
	if usesCredentials(profile.Portal.Steps) && (creds.Username == "" || creds.Password == "") {
		return nil, &PortalError{Profile: profile.Name, Code: CodeMissingCredentials, Message: "portal credentials are not configured"}
	}

	dir, err := os.MkdirTemp("", "portal-"+profile.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	defer os.RemoveAll(dir)

	session := &session{
		collector: c,
		profile:   profile,
		vars:      NewVariables(creds, from, to, profile.Portal.DateLayout),
		dir:       dir,
	}

	start := time.Now()
	err = c.pool.ExecuteWithBrowser(ctx, session.run)
	if err != nil {
		var portalErr *PortalError
		if !errors.As(err, &portalErr) {
			err = &PortalError{Profile: profile.Name, Code: CodeBrowserUnavailable, Message: "browser session failed", Retryable: true, Err: err}
		}
		c.logger.Warn("Portal collection failed", "profile", profile.Name, "duration", time.Since(start), "error", err)
		return nil, err
	}

	c.logger.Info("Portal collection completed",
		"profile", profile.Name,
		"file", session.result.Name,
		"bytes", len(session.result.Data),
		"duration", time.Since(start))

	return session.result, nil
}

// session is the state of one browser run
type session struct {
	collector *Collector
	profile   *profiles.Profile
	vars      Variables
	dir       string

	mu        sync.Mutex
	filenames map[string]string
	completed chan string
	failed    chan string

	result *artifact.RawArtifact
}

func (s *session) run(ctx context.Context) error {
	s.filenames = map[string]string{}
	s.completed = make(chan string, 1)
	s.failed = make(chan string, 1)
	chromedp.ListenTarget(ctx, s.onEvent)

	behavior := browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
		WithDownloadPath(s.dir).
		WithEventsEnabled(true)
	if err := chromedp.Run(ctx, behavior); err != nil {
		return s.fail(0, CodeBrowserUnavailable, "failed to enable downloads", true, err)
	}

	if start := s.profile.Portal.StartURL; start != "" {
		if err := chromedp.Run(ctx, chromedp.Navigate(s.vars.Expand(start))); err != nil {
			return s.fail(0, CodeNavigationFailed, "failed to open start page", true, err)
		}
	}

	for i, step := range s.profile.Portal.Steps {
		err := s.runStep(ctx, i+1, step)
		if err == nil {
			continue
		}
		if step.Optional {
			s.collector.logger.Debug("Optional portal step skipped", "profile", s.profile.Name, "step", i+1, "action", step.Action, "error", err)
			continue
		}
		return err
	}

	if s.result == nil {
		return s.fail(0, CodeDownloadFailed, "script finished without a download step", false, nil)
	}
	return nil
}

func (s *session) runStep(ctx context.Context, n int, step profiles.Step) error {
	s.collector.logger.Debug("Running portal step", "profile", s.profile.Name, "step", n, "action", step.Action)

	switch step.Action {
	case profiles.ActionNavigate:
		if err := chromedp.Run(ctx, chromedp.Navigate(s.vars.Expand(step.URL))); err != nil {
			return s.fail(n, CodeNavigationFailed, "navigation failed", true, err)
		}
		return nil
	case profiles.ActionSleep:
		return chromedp.Run(ctx, chromedp.Sleep(step.Duration))
	case profiles.ActionDownload:
		return s.download(ctx, n, step)
	}

	value := s.vars.Expand(step.Value)
	return s.withTarget(ctx, n, step, func(sel string, by chromedp.QueryOption) chromedp.Tasks {
		switch step.Action {
		case profiles.ActionFill:
			return chromedp.Tasks{
				chromedp.WaitVisible(sel, by),
				chromedp.Clear(sel, by),
				chromedp.SendKeys(sel, value, by),
			}
		case profiles.ActionClick:
			return chromedp.Tasks{
				chromedp.WaitVisible(sel, by),
				chromedp.Click(sel, by),
			}
		case profiles.ActionSelect:
			return chromedp.Tasks{
				chromedp.WaitVisible(sel, by),
				chromedp.SetValue(sel, value, by),
			}
		default:
			return chromedp.Tasks{chromedp.WaitVisible(sel, by)}
		}
	})
}

// withTarget tries each target in order until one completes its tasks
func (s *session) withTarget(ctx context.Context, n int, step profiles.Step, tasks func(string, chromedp.QueryOption) chromedp.Tasks) error {
	var lastErr error
	for _, target := range step.Targets {
		sel, by, err := selector(target)
		if err != nil {
			lastErr = err
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.collector.targetTimeout)
		err = chromedp.Run(attemptCtx, tasks(sel, by))
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		s.collector.logger.Debug("Portal target did not resolve", "profile", s.profile.Name, "step", n, "target", target.String())
	}
	return s.fail(n, CodeElementNotFound, fmt.Sprintf("no target matched for %s", step.Action), false, lastErr)
}

func (s *session) download(ctx context.Context, n int, step profiles.Step) error {
	click := func(sel string, by chromedp.QueryOption) chromedp.Tasks {
		return chromedp.Tasks{chromedp.WaitVisible(sel, by), chromedp.Click(sel, by)}
	}
	if err := s.withTarget(ctx, n, step, click); err != nil {
		return err
	}

	timeout := s.profile.Portal.DownloadTimeout
	if timeout <= 0 {
		timeout = s.collector.downloadTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case guid := <-s.completed:
		data, err := os.ReadFile(filepath.Join(s.dir, guid))
		if err != nil {
			return s.fail(n, CodeDownloadFailed, "failed to read downloaded file", false, err)
		}

		s.mu.Lock()
		name := s.filenames[guid]
		s.mu.Unlock()
		if name == "" {
			name = s.profile.Name + "-export"
		}

		result := artifact.New(name, data)
		s.result = &result
		return nil
	case guid := <-s.failed:
		return s.fail(n, CodeDownloadFailed, "download was canceled by the browser ("+guid+")", true, nil)
	case <-timer.C:
		return s.fail(n, CodeDownloadTimeout, fmt.Sprintf("download did not finish within %s", timeout), true, nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		s.mu.Lock()
		s.filenames[e.GUID] = e.SuggestedFilename
		s.mu.Unlock()
	case *browser.EventDownloadProgress:
		switch e.State {
		case browser.DownloadProgressStateCompleted:
			select {
			case s.completed <- e.GUID:
			default:
			}
		case browser.DownloadProgressStateCanceled:
			select {
			case s.failed <- e.GUID:
			default:
			}
		}
	}
}

func (s *session) fail(step int, code, message string, retryable bool, err error) error {
	return &PortalError{
		Profile:   s.profile.Name,
		Step:      step,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Err:       err,
	}
}

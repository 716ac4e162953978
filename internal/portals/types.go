package portals

import (
	"context"
	"fmt"
	"time"
)

// HeadlessOptions contains configuration for headless browser operations
type HeadlessOptions struct {
	// Headless controls whether to run browser in headless mode
	Headless bool
	// Timeout bounds one whole portal session
	Timeout time.Duration
	// DisableImages optimizes performance by not loading images
	DisableImages bool
	// UserAgent to use for requests
	UserAgent string
	// ViewportWidth sets browser viewport width
	ViewportWidth int64
	// ViewportHeight sets browser viewport height
	ViewportHeight int64
	// DebugMode enables additional logging
	DebugMode bool
}

// DefaultHeadlessOptions returns sensible defaults for headless browsing
func DefaultHeadlessOptions() *HeadlessOptions {
	return &HeadlessOptions{
		Headless:       true,
		Timeout:        5 * time.Minute,
		DisableImages:  true,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		DebugMode:      false,
	}
}

// BrowserPoolConfig contains configuration for browser pool management
type BrowserPoolConfig struct {
	// MaxBrowsers limits the number of concurrent browser instances
	MaxBrowsers int
	// IdleTimeout defines how long to keep idle browsers alive
	IdleTimeout time.Duration
	// MaxIdleBrowsers limits the number of idle browsers to keep
	MaxIdleBrowsers int
}

// DefaultBrowserPoolConfig returns sensible defaults for browser pool
func DefaultBrowserPoolConfig() *BrowserPoolConfig {
	return &BrowserPoolConfig{
		MaxBrowsers:     2,
		IdleTimeout:     5 * time.Minute,
		MaxIdleBrowsers: 1,
	}
}

// BrowserInstance represents a managed browser instance
type BrowserInstance struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	lastUsed    time.Time
	inUse       bool
}

// BrowserPoolStats provides information about browser pool usage
type BrowserPoolStats struct {
	Active int `json:"active"`
	Idle   int `json:"idle"`
	Total  int `json:"total"`
}

// Credentials is the portal login substituted into step values
type Credentials struct {
	Username string
	Password string
}

// Error codes reported by the collector
const (
	CodeNoScript           = "no_script"
	CodeMissingCredentials = "missing_credentials"
	CodeBrowserUnavailable = "browser_unavailable"
	CodeNavigationFailed   = "navigation_failed"
	CodeElementNotFound    = "element_not_found"
	CodeDownloadTimeout    = "download_timeout"
	CodeDownloadFailed     = "download_failed"
)

// PortalError describes a failed portal session
type PortalError struct {
	Profile   string `json:"profile"`
	Step      int    `json:"step,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *PortalError) Error() string {
	msg := e.Profile + ": " + e.Message
	if e.Step > 0 {
		msg = fmt.Sprintf("%s: step %d: %s", e.Profile, e.Step, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PortalError) Unwrap() error {
	return e.Err
}

package ratelimit

import (
	"time"
)

// DefaultMinRunInterval applies when the config does not set a spacing
const DefaultMinRunInterval = 15 * time.Minute

// Config interface for rate limiting configuration
type Config interface {
	GetDisableRateLimit() bool
	GetMinRunInterval() time.Duration
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	ShouldBlock   bool
	RemainingTime time.Duration
	Reason        string
}

// CheckRunRateLimit checks whether a profile run should be held back because
// the previous run started too recently. Used by both the API trigger and
// the scheduler.
func CheckRunRateLimit(cfg Config, lastRun *time.Time, isForced bool) RateLimitResult {
	if cfg.GetDisableRateLimit() {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "rate_limiting_disabled",
		}
	}

	if isForced {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "forced_run",
		}
	}

	if lastRun == nil {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "no_previous_run",
		}
	}

	interval := GetRateLimitDuration(cfg)
	sinceLast := time.Since(*lastRun)

	if sinceLast < interval {
		return RateLimitResult{
			ShouldBlock:   true,
			RemainingTime: interval - sinceLast,
			Reason:        "rate_limit_active",
		}
	}

	return RateLimitResult{
		ShouldBlock: false,
		Reason:      "rate_limit_passed",
	}
}

// GetRateLimitDuration returns the minimum spacing between runs of one profile
func GetRateLimitDuration(cfg Config) time.Duration {
	if d := cfg.GetMinRunInterval(); d > 0 {
		return d
	}
	return DefaultMinRunInterval
}

// Package profiles holds the per-portal configuration: target schema, column
// aliases, normalization rules, destination and the browser script that
// fetches the report.
package profiles

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"carrier-reports/internal/normalize"
	"carrier-reports/internal/reconcile"
)

// Step actions understood by the portal collector.
const (
	ActionNavigate = "navigate"
	ActionFill     = "fill"
	ActionClick    = "click"
	ActionWait     = "wait"
	ActionSleep    = "sleep"
	ActionSelect   = "select"
	ActionDownload = "download"
)

// Target lookup strategies.
const (
	ByID          = "id"
	ByName        = "name"
	ByPlaceholder = "placeholder"
	ByCSS         = "css"
	ByXPath       = "xpath"
	ByText        = "text"
)

// Profile is everything needed to turn one portal's export into rows on the
// shared sheet.
type Profile struct {
	Name         string              `yaml:"name" json:"name"`
	Description  string              `yaml:"description" json:"description,omitempty"`
	Enabled      *bool               `yaml:"enabled" json:"enabled,omitempty"`
	Schema       []string            `yaml:"schema" json:"schema"`
	Aliases      map[string][]string `yaml:"aliases" json:"aliases,omitempty"`
	Rules        normalize.Rules     `yaml:"rules" json:"rules"`
	Destination  Destination         `yaml:"destination" json:"destination"`
	LookbackDays int                 `yaml:"lookback_days" json:"lookback_days"`
	Portal       Portal              `yaml:"portal" json:"-"`
}

// Destination is where reconciled rows are written.
type Destination struct {
	SpreadsheetID string `yaml:"spreadsheet_id" json:"spreadsheet_id,omitempty"`
	Range         string `yaml:"range" json:"range,omitempty"`
	File          string `yaml:"file" json:"file,omitempty"`
}

// Portal is the scripted browser session that produces the report file.
type Portal struct {
	StartURL        string        `yaml:"start_url"`
	Steps           []Step        `yaml:"steps"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// DateLayout formats ${from} and ${to}; defaults to 2006-01-02.
	DateLayout      string        `yaml:"date_layout"`
}

// Step is one UI action. Targets are alternative ways to find the element,
// tried in order until one resolves.
type Step struct {
	Action   string        `yaml:"action"`
	URL      string        `yaml:"url,omitempty"`
	Targets  []Target      `yaml:"targets,omitempty"`
	Value    string        `yaml:"value,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
	Optional bool          `yaml:"optional,omitempty"`
}

// Target locates an element.
type Target struct {
	By    string `yaml:"by"`
	Value string `yaml:"value"`
}

func (t Target) String() string {
	return t.By + "=" + t.Value
}

// IsEnabled defaults to true when the profile does not say otherwise.
func (p *Profile) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// HasPortal reports whether the profile can be collected automatically.
func (p *Profile) HasPortal() bool {
	return len(p.Portal.Steps) > 0
}

// TargetSchema returns the schema as the reconciler's type.
func (p *Profile) TargetSchema() reconcile.Schema {
	return reconcile.Schema(p.Schema)
}

// AliasTable returns the aliases as the reconciler's type.
func (p *Profile) AliasTable() reconcile.Aliases {
	return reconcile.Aliases(p.Aliases)
}

// Window returns the report date range ending at now.
func (p *Profile) Window(now time.Time) (from, to time.Time) {
	days := p.LookbackDays
	if days <= 0 {
		days = 1
	}
	to = now
	from = now.AddDate(0, 0, -days)
	return from, to
}

// Validate checks the profile is internally consistent.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	if len(p.Schema) == 0 {
		return fmt.Errorf("profile %q: schema cannot be empty", p.Name)
	}

	seen := make(map[string]bool, len(p.Schema))
	for _, col := range p.Schema {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("profile %q: schema contains a blank column", p.Name)
		}
		if seen[col] {
			return fmt.Errorf("profile %q: duplicate schema column %q", p.Name, col)
		}
		seen[col] = true
	}
	for col := range p.Aliases {
		if !seen[col] {
			return fmt.Errorf("profile %q: aliases for unknown column %q", p.Name, col)
		}
	}
	for col := range p.Rules.Columns {
		if !seen[col] {
			return fmt.Errorf("profile %q: rule for unknown column %q", p.Name, col)
		}
	}
	if err := p.Rules.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if p.LookbackDays < 0 {
		return fmt.Errorf("profile %q: lookback_days cannot be negative", p.Name)
	}

	for i, step := range p.Portal.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("profile %q: step %d: %w", p.Name, i+1, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Action {
	case ActionNavigate:
		if s.URL == "" {
			return errors.New("navigate requires url")
		}
	case ActionFill, ActionClick, ActionWait, ActionSelect, ActionDownload:
		if len(s.Targets) == 0 {
			return fmt.Errorf("%s requires at least one target", s.Action)
		}
	case ActionSleep:
		if s.Duration <= 0 {
			return errors.New("sleep requires a positive duration")
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}

	for _, t := range s.Targets {
		switch t.By {
		case ByID, ByName, ByPlaceholder, ByCSS, ByXPath, ByText:
		default:
			return fmt.Errorf("unknown target strategy %q", t.By)
		}
		if t.Value == "" {
			return fmt.Errorf("target %q has no value", t.By)
		}
	}
	return nil
}

// Package normalize coerces reconciled cells into the textual forms the
// destination sheet expects.
package normalize

import (
	"fmt"
	"strings"

	"carrier-reports/internal/reconcile"
)

// Kind is a per-column coercion rule.
type Kind string

const (
	// KindText keeps identifiers (waybills, phone numbers, order ids) as
	// literal text, undoing spreadsheet number rendering.
	KindText Kind = "text"
	// KindDate renders dates as "2006-01-02 15:04:05", or "" when unparsable.
	KindDate Kind = "date"
	// KindCurrency keeps amounts as trimmed text without locale reformatting.
	KindCurrency Kind = "currency"
)

// DateLayout is the rendering used for every date column.
const DateLayout = "2006-01-02 15:04:05"

// Rules configures normalization for one schema.
type Rules struct {
	Columns  map[string]Kind `yaml:"columns" json:"columns"`
	DayFirst bool            `yaml:"day_first" json:"day_first"`
}

// Validate rejects unknown rule kinds.
func (r Rules) Validate() error {
	for col, kind := range r.Columns {
		switch kind {
		case KindText, KindDate, KindCurrency:
		default:
			return fmt.Errorf("column %q has unknown rule %q", col, kind)
		}
	}
	return nil
}

// Normalize returns a copy of t with every configured column coerced.
// Columns without a rule pass through unchanged. Applying it twice gives the
// same result as applying it once.
func Normalize(t *reconcile.Table, rules Rules) *reconcile.Table {
	out := t.Clone()
	for col, kind := range rules.Columns {
		i := out.Index(col)
		if i < 0 {
			continue
		}
		for _, row := range out.Rows {
			row[i] = apply(kind, row[i], rules.DayFirst)
		}
	}
	return out
}

func apply(kind Kind, value string, dayFirst bool) string {
	switch kind {
	case KindText:
		return Identifier(value)
	case KindDate:
		return Date(value, dayFirst)
	case KindCurrency:
		return Currency(value)
	default:
		return value
	}
}

// Currency trims surrounding whitespace and otherwise leaves the amount alone.
func Currency(value string) string {
	return strings.TrimSpace(value)
}

// Package reconcile maps whatever column names a report arrived with onto a
// fixed target schema.
package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"carrier-reports/internal/tabular"
)

// Schema is the ordered list of canonical column names a destination expects.
type Schema []string

// Aliases maps a canonical column name to alternative labels portals use.
type Aliases map[string][]string

// Strategy records which matching rule found a column.
type Strategy string

const (
	StrategyExact     Strategy = "exact"
	StrategyAlias     Strategy = "alias"
	StrategySubstring Strategy = "substring"
	StrategyNone      Strategy = "none"
)

// Match describes how one canonical column was resolved.
type Match struct {
	Canonical string   `json:"canonical"`
	Source    string   `json:"source,omitempty"`
	Strategy  Strategy `json:"strategy"`
	Found     bool     `json:"found"`
}

// Table is a report projected onto a schema. Rows are positional and always
// exactly len(Columns) wide.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Matches []Match    `json:"matches"`
}

// Missing returns the canonical columns no source column was found for.
func (t *Table) Missing() []string {
	var missing []string
	for _, m := range t.Matches {
		if !m.Found {
			missing = append(missing, m.Canonical)
		}
	}
	return missing
}

// Index returns the position of a canonical column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns every value of a canonical column in row order.
func (t *Table) Column(column string) []string {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Records returns the header followed by every row, ready for upload.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Columns...))
	for _, row := range t.Rows {
		out = append(out, append([]string(nil), row...))
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
		Matches: append([]Match(nil), t.Matches...),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}

// NormalizeName folds a column label for comparison: NFC, lowercase, only
// letters, digits and single spaces.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// Reconcile projects table onto schema. Each canonical column takes the first
// discovered column that matches, trying exact name, then exact alias, then
// substring containment either way against the aliases. Columns with no match
// are filled with empty strings.
func Reconcile(table *tabular.Table, schema Schema, aliases Aliases) *Table {
	if table == nil {
		table = tabular.Empty()
	}

	discovered := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		discovered[i] = NormalizeName(c)
	}

	out := &Table{
		Columns: append([]string(nil), schema...),
		Rows:    make([][]string, len(table.Rows)),
		Matches: make([]Match, len(schema)),
	}

	sources := make([]int, len(schema))
	for i, canonical := range schema {
		idx, strategy := resolve(canonical, normalizeAll(aliases[canonical]), discovered)
		sources[i] = idx
		m := Match{Canonical: canonical, Strategy: strategy, Found: idx >= 0}
		if idx >= 0 {
			m.Source = table.Columns[idx]
		}
		out.Matches[i] = m
	}

	for r, row := range table.Rows {
		values := make([]string, len(schema))
		for i, idx := range sources {
			if idx >= 0 {
				values[i] = row[table.Columns[idx]]
			}
		}
		out.Rows[r] = values
	}
	return out
}

func normalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if nn := NormalizeName(n); nn != "" {
			out = append(out, nn)
		}
	}
	return out
}

func resolve(canonical string, aliases, discovered []string) (int, Strategy) {
	want := NormalizeName(canonical)
	if want != "" {
		for i, d := range discovered {
			if d == want {
				return i, StrategyExact
			}
		}
	}

	for i, d := range discovered {
		if d == "" {
			continue
		}
		for _, a := range aliases {
			if d == a {
				return i, StrategyAlias
			}
		}
	}

	for i, d := range discovered {
		if d == "" {
			continue
		}
		for _, a := range aliases {
			if strings.Contains(d, a) || strings.Contains(a, d) {
				return i, StrategySubstring
			}
		}
	}
	return -1, StrategyNone
}

package tabular

import (
	"fmt"
	"strings"
)

// Row maps a discovered column name to its cell text.
type Row map[string]string

// Table is a column-name-keyed view of whatever a file contained.
// Columns keep discovery order and are not deduplicated.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{Columns: []string{}, Rows: []Row{}}
}

// IsEmpty reports whether the table carries neither columns nor rows.
func (t *Table) IsEmpty() bool {
	return t == nil || (len(t.Columns) == 0 && len(t.Rows) == 0)
}

// Value returns the cell for a column, or "" when absent.
func (t *Table) Value(row int, column string) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][column]
}

// syntheticName is the generated label for the zero-based column i.
func syntheticName(i int) string {
	return fmt.Sprintf("Column%d", i+1)
}

// builder assembles a Table from positional records.
type builder struct {
	headers []string
	rows    [][]string
}

func newBuilder(headers []string) *builder {
	h := make([]string, len(headers))
	for i, name := range headers {
		h[i] = strings.TrimSpace(name)
	}
	return &builder{headers: h}
}

// synthesized returns a builder whose header is Column1..ColumnN.
func synthesized(n int) *builder {
	h := make([]string, n)
	for i := range h {
		h[i] = syntheticName(i)
	}
	return &builder{headers: h}
}

func (b *builder) add(cells []string) {
	b.rows = append(b.rows, cells)
}

// build keys every record by position. Blank headers and cells past the
// header get Column{i+1}. Every row ends up carrying every column.
func (b *builder) build() *Table {
	columns := make([]string, 0, len(b.headers))
	for i, name := range b.headers {
		if name == "" {
			name = syntheticName(i)
		}
		columns = append(columns, name)
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	rows := make([]Row, 0, len(b.rows))
	for _, cells := range b.rows {
		row := make(Row, len(columns))
		for i, cell := range cells {
			name := ""
			if i < len(columns) {
				name = columns[i]
			} else {
				name = syntheticName(i)
				if !known[name] {
					known[name] = true
					columns = append(columns, name)
				}
			}
			if _, dup := row[name]; dup {
				continue
			}
			row[name] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}

	for _, row := range rows {
		for _, c := range columns {
			if _, ok := row[c]; !ok {
				row[c] = ""
			}
		}
	}

	return &Table{Columns: columns, Rows: rows}
}

func blankRecord(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// fromRecords treats the first non-blank record as the header.
func fromRecords(records [][]string) *Table {
	start := 0
	for start < len(records) && blankRecord(records[start]) {
		start++
	}
	if start == len(records) {
		return Empty()
	}

	b := newBuilder(records[start])
	for _, rec := range records[start+1:] {
		if blankRecord(rec) {
			continue
		}
		b.add(rec)
	}
	return b.build()
}

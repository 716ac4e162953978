package tabular

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const maxColspan = 64

const (
	gridRowSelector    = "[role='row'], [class*='row']"
	gridCellSelector   = "[role='gridcell'], [role='cell'], [role='columnheader'], [class*='cell']"
	gridHeaderSelector = "[role='columnheader'], [class*='header']"
)

// parseHTML picks the table with the most rows and falls back to div grids.
func parseHTML(data []byte) (*Table, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return nil, fmt.Errorf("failed to detect html charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var (
		best     *goquery.Selection
		bestRows int
	)
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		n := ownRows(table).Length()
		if n > bestRows {
			best, bestRows = table, n
		}
	})

	if best != nil && bestRows > 1 {
		return tableFromSelection(best), nil
	}
	return parseGrid(doc), nil
}

// ownRows returns the rows whose nearest table ancestor is table itself.
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

func tableFromSelection(table *goquery.Selection) *Table {
	var records [][]string
	var headerRow bool
	ownRows(table).Each(func(i int, tr *goquery.Selection) {
		cells := rowCells(tr)
		if len(cells) == 0 {
			return
		}
		if len(records) == 0 {
			headerRow = tr.ChildrenFiltered("th").Length() > 0 ||
				tr.ParentsFiltered("thead").Length() > 0 ||
				looksLikeHeader(cells)
		}
		records = append(records, cells)
	})
	if len(records) == 0 {
		return Empty()
	}

	if headerRow {
		b := newBuilder(records[0])
		for _, rec := range records[1:] {
			b.add(rec)
		}
		return b.build()
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	b := synthesized(width)
	for _, rec := range records {
		b.add(rec)
	}
	return b.build()
}

// rowCells returns the text of th/td children, repeating colspan cells.
func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := cellText(cell)
		span, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr("colspan", "1")))
		if err != nil || span < 1 {
			span = 1
		}
		span = min(span, maxColspan)
		for range span {
			cells = append(cells, text)
		}
	})
	return cells
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// looksLikeHeader accepts a td-only first row when every cell is a label.
func looksLikeHeader(cells []string) bool {
	for _, c := range cells {
		if c == "" || isNumeric(c) {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	s = strings.ReplaceAll(s, ",", "")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// parseGrid reads tables built from styled div elements.
func parseGrid(doc *goquery.Document) *Table {
	var (
		header  []string
		records [][]string
	)

	doc.Find(gridRowSelector).Each(func(_ int, row *goquery.Selection) {
		if row.Find(gridRowSelector).Length() > 0 {
			return
		}
		cells := gridCells(row)
		if len(cells) == 0 {
			return
		}
		isHeader := row.Find("[role='columnheader']").Length() > 0 ||
			row.Closest("[class*='header']").Length() > 0
		if isHeader && header == nil {
			header = cells
			return
		}
		records = append(records, cells)
	})

	if header == nil {
		// header cells sitting directly in a header element, outside any row
		doc.Find(gridHeaderSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if h.Find(gridRowSelector).Length() > 0 {
				return true
			}
			if cells := gridCells(h); len(cells) > 0 {
				header = cells
				return false
			}
			return true
		})
	}

	if header == nil && len(records) == 0 {
		return Empty()
	}

	var b *builder
	if header != nil {
		b = newBuilder(header)
	} else {
		width := 0
		for _, rec := range records {
			width = max(width, len(rec))
		}
		b = synthesized(width)
	}
	for _, rec := range records {
		b.add(rec)
	}
	return b.build()
}

// gridCells returns the text of the innermost cell elements under s.
func gridCells(s *goquery.Selection) []string {
	var cells []string
	s.Find(gridCellSelector).Each(func(_ int, cell *goquery.Selection) {
		if cell.Find(gridCellSelector).Length() > 0 {
			return
		}
		cells = append(cells, cellText(cell))
	})
	return cells
}

package tabular

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"carrier-reports/internal/artifact"
)

var errNoSheets = errors.New("workbook has no sheets")

type spreadsheetEngine struct {
	name  string
	parse func(data []byte) (*Table, error)
}

var (
	excelizeEngine = spreadsheetEngine{name: "excelize", parse: parseExcelize}
	ooxmlEngine    = spreadsheetEngine{name: "ooxml", parse: parseOOXML}
	biffEngine     = spreadsheetEngine{name: "biff", parse: parseBIFF}
	htmlEngine     = spreadsheetEngine{name: "html", parse: parseHTMLExport}
)

// enginesFor orders engines by how likely they are to read kind.
func enginesFor(kind artifact.FormatKind) []spreadsheetEngine {
	if kind == artifact.KindLegacySpreadsheet {
		return []spreadsheetEngine{biffEngine, excelizeEngine, ooxmlEngine, htmlEngine}
	}
	return []spreadsheetEngine{excelizeEngine, ooxmlEngine, biffEngine, htmlEngine}
}

// parseSpreadsheet reads the first sheet with the first engine that succeeds.
func (e *Extractor) parseSpreadsheet(a artifact.RawArtifact, kind artifact.FormatKind) (*Table, error) {
	var errs []error
	for _, engine := range enginesFor(kind) {
		t, err := runEngine(engine, a.Data)
		if err == nil {
			if len(errs) > 0 {
				e.logger.Info("spreadsheet read by fallback engine", "artifact", a.Name, "engine", engine.name)
			}
			return t, nil
		}
		e.logger.Debug("spreadsheet engine failed", "artifact", a.Name, "engine", engine.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", engine.name, err))
	}
	return nil, errors.Join(errs...)
}

func runEngine(engine spreadsheetEngine, data []byte) (t *Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("engine panicked: %v", r)
		}
	}()
	return engine.parse(data)
}

func parseExcelize(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(rows), nil
}

func parseBIFF(data []byte) (*Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, errNoSheets
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errNoSheets
	}

	var records [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		records = append(records, cells)
	}
	return fromRecords(records), nil
}

// parseHTMLExport covers "xls" downloads that are really bare HTML tables.
func parseHTMLExport(data []byte) (*Table, error) {
	if !artifact.HasHTMLMarkers(data) {
		return nil, errors.New("no html markup")
	}
	return parseHTML(data)
}

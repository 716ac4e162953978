package tabular

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// parseOOXML reads the first worksheet straight out of the package. It only
// understands cell values, which is enough for workbooks excelize rejects
// over styling or relationship quirks.
func parseOOXML(data []byte) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}

	var (
		sheets []*zip.File
		shared *zip.File
	)
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		switch {
		case name == "xl/sharedstrings.xml":
			shared = f
		case strings.HasPrefix(name, "xl/worksheets/") && path.Ext(name) == ".xml":
			sheets = append(sheets, f)
		}
	}
	if len(sheets) == 0 {
		return nil, errNoSheets
	}
	sort.Slice(sheets, func(i, j int) bool {
		return sheetNumber(sheets[i].Name) < sheetNumber(sheets[j].Name)
	})

	var strs []string
	if shared != nil {
		if strs, err = readSharedStrings(shared); err != nil {
			return nil, err
		}
	}

	records, err := readWorksheet(sheets[0], strs)
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// sheetNumber extracts N from xl/worksheets/sheetN.xml.
func sheetNumber(name string) int {
	base := strings.TrimSuffix(path.Base(strings.ToLower(name)), ".xml")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "sheet"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

func readSharedStrings(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open shared strings: %w", err)
	}
	defer rc.Close()

	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read shared strings: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				cur.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				out = append(out, cur.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return out, nil
}

func readWorksheet(f *zip.File, shared []string) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open worksheet: %w", err)
	}
	defer rc.Close()

	var (
		records  [][]string
		row      []string
		col      int
		cellType string
		value    strings.Builder
		inValue  bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read worksheet: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				row = nil
				col = 0
			case "c":
				cellType = ""
				value.Reset()
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "r":
						idx, ok := columnIndex(attr.Value)
						if !ok {
							return nil, fmt.Errorf("invalid cell reference %q", attr.Value)
						}
						col = idx
					case "t":
						cellType = attr.Value
					}
				}
			case "v", "t":
				inValue = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				for len(row) < col {
					row = append(row, "")
				}
				row = append(row, cellValue(cellType, value.String(), shared))
				col++
			case "row":
				records = append(records, row)
			}
		case xml.CharData:
			if inValue {
				value.Write(t)
			}
		}
	}
	return records, nil
}

func cellValue(cellType, raw string, shared []string) string {
	switch cellType {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || i < 0 || i >= len(shared) {
			return ""
		}
		return shared[i]
	case "b":
		if strings.TrimSpace(raw) == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return raw
	}
}

// maxColumns is the widest sheet Excel allows (column XFD).
const maxColumns = 16384

// columnIndex converts the letters of a cell reference like "AB12" to a
// zero-based column index. References past XFD are rejected.
func columnIndex(ref string) (int, bool) {
	n := 0
	letters := 0
	for _, r := range ref {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r < 'A' || r > 'Z' {
			break
		}
		n = n*26 + int(r-'A'+1)
		letters++
		if n > maxColumns {
			return 0, false
		}
	}
	if letters == 0 {
		return 0, false
	}
	return n - 1, true
}

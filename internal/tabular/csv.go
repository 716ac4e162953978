package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var errInvalidUTF8 = errors.New("input is not valid utf-8")

// parseCSV reads comma-separated text, retrying once as Windows-1252 when the
// bytes are not UTF-8 or the first parse fails.
func parseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	t, err := readCSV(data)
	if err == nil {
		return t, nil
	}

	decoded, decErr := charmap.Windows1252.NewDecoder().Bytes(data)
	if decErr != nil {
		return nil, fmt.Errorf("failed to decode as latin-1 after %v: %w", err, decErr)
	}
	t, retryErr := readCSV(decoded)
	if retryErr != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", errors.Join(err, retryErr))
	}
	return t, nil
}

func readCSV(data []byte) (*Table, error) {
	if !utf8.Valid(data) {
		return nil, errInvalidUTF8
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		records = append(records, rec)
	}
	return fromRecords(records), nil
}

package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"carrier-reports/internal/profiles"
)

// FileUploader writes tables under a local directory
type FileUploader struct {
	dir    string
	logger *slog.Logger
}

// NewFileUploader creates a file uploader rooted at dir
func NewFileUploader(dir string, logger *slog.Logger) *FileUploader {
	return &FileUploader{dir: dir, logger: logger}
}

// Upload writes records to dest.File, or to a CSV named after the range's
// sheet. The format follows the extension: .xlsx or .csv.
func (f *FileUploader) Upload(ctx context.Context, dest profiles.Destination, records [][]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := f.Path(dest)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write next to the target and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		tmp.Close()
		err = writeXLSX(tmpName, sheetOrDefault(dest.Range), records)
	default:
		err = writeCSV(tmp, records)
		if closeErr := tmp.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to move output into place: %w", err)
	}

	f.logger.Info("Wrote report file", "path", path, "rows", max(len(records)-1, 0))
	return "file:" + path, nil
}

// Path resolves where a destination is written
func (f *FileUploader) Path(dest profiles.Destination) string {
	name := dest.File
	if name == "" {
		name = strings.ToLower(sheetOrDefault(dest.Range)) + ".csv"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.dir, name)
}

func sheetOrDefault(rng string) string {
	if name := sheetName(rng); name != "" {
		return name
	}
	return "Sheet1"
}

func writeCSV(file *os.File, records [][]string) error {
	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return w.Error()
}

func writeXLSX(path, sheet string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cellName, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

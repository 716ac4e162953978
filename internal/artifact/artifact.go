package artifact

import (
	"os"
	"path/filepath"
	"strings"
)

// FormatKind is the detected encoding family of a downloaded report.
type FormatKind string

const (
	KindTabularHTML       FormatKind = "tabular-html"
	KindLegacySpreadsheet FormatKind = "legacy-spreadsheet"
	KindModernSpreadsheet FormatKind = "modern-spreadsheet"
	KindDelimitedText     FormatKind = "delimited-text"
	KindUnknown           FormatKind = "unknown"
)

// IsSpreadsheet reports whether the kind is one of the binary workbook formats.
func (k FormatKind) IsSpreadsheet() bool {
	return k == KindLegacySpreadsheet || k == KindModernSpreadsheet
}

func (k FormatKind) String() string {
	return string(k)
}

// RawArtifact is a downloaded file. Extension is whatever the portal claimed
// and is not trusted.
type RawArtifact struct {
	Name      string
	Extension string
	Data      []byte
}

// New builds an artifact from a file name and its bytes.
func New(name string, data []byte) RawArtifact {
	return RawArtifact{
		Name:      name,
		Extension: NormalizeExtension(filepath.Ext(name)),
		Data:      data,
	}
}

// ReadFile loads an artifact from disk.
func ReadFile(path string) (RawArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawArtifact{}, err
	}
	return New(filepath.Base(path), data), nil
}

// NormalizeExtension lowercases an extension and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Empty reports whether the artifact carries no bytes.
func (a RawArtifact) Empty() bool {
	return len(a.Data) == 0
}

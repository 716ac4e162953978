package artifact

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	prefixLen      = 2000
	textSampleLen  = 500
	maxSampleLines = 5
)

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

	htmlMarkers = [][]byte{[]byte("<html"), []byte("<!doctype html")}
)

var extensionKinds = map[string]FormatKind{
	".csv":  KindDelimitedText,
	".xlsx": KindModernSpreadsheet,
	".xls":  KindLegacySpreadsheet,
	".htm":  KindTabularHTML,
	".html": KindTabularHTML,
}

// Classify inspects content first and falls back to the claimed extension.
// Portals routinely mislabel exports (HTML served as .xls), so the magic
// bytes always win.
func Classify(a RawArtifact) FormatKind {
	prefix := a.Data
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}

	lower := bytes.ToLower(prefix)
	for _, marker := range htmlMarkers {
		if bytes.Contains(lower, marker) {
			return KindTabularHTML
		}
	}

	if bytes.HasPrefix(prefix, zipMagic) {
		return KindModernSpreadsheet
	}
	if bytes.HasPrefix(prefix, cfbMagic) {
		return KindLegacySpreadsheet
	}

	if looksDelimited(prefix) {
		return KindDelimitedText
	}

	if kind, ok := extensionKinds[NormalizeExtension(a.Extension)]; ok {
		return kind
	}
	return KindUnknown
}

// looksDelimited checks a short text sample for a stable comma count per line.
func looksDelimited(prefix []byte) bool {
	sample := DecodePermissive(prefix)
	truncated := false
	if utf8.RuneCountInString(sample) > textSampleLen {
		sample = string([]rune(sample)[:textSampleLen])
		truncated = true
	} else if len(prefix) == prefixLen {
		truncated = true
	}

	if !strings.Contains(sample, ",") || !strings.Contains(sample, "\n") {
		return false
	}

	all := strings.Split(strings.ReplaceAll(sample, "\r\n", "\n"), "\n")
	lines := all
	if truncated && len(lines) > 1 {
		// the last line was cut by the sample window
		lines = lines[:len(lines)-1]
	}

	counts := make([]int, 0, maxSampleLines)
	firstTerminated := false
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(counts) == 0 {
			firstTerminated = i < len(all)-1
		}
		counts = append(counts, countDelimiters(line, ','))
		if len(counts) == maxSampleLines {
			break
		}
	}
	if len(counts) == 0 || counts[0] == 0 {
		return false
	}
	// a header-only export is a single line ending in a newline
	if len(counts) == 1 {
		return firstTerminated
	}
	for _, c := range counts[1:] {
		if c != counts[0] {
			return false
		}
	}
	return true
}

// countDelimiters counts separators outside double-quoted fields.
func countDelimiters(line string, sep rune) int {
	inQuotes := false
	n := 0
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == sep && !inQuotes:
			n++
		}
	}
	return n
}

// DecodePermissive turns arbitrary bytes into a string, dropping invalid
// UTF-8 sequences and a leading byte-order mark.
func DecodePermissive(b []byte) string {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(b), "")
}

// HasHTMLMarkers reports whether a text prefix looks like HTML markup.
func HasHTMLMarkers(b []byte) bool {
	if len(b) > prefixLen {
		b = b[:prefixLen]
	}
	lower := bytes.ToLower(b)
	for _, marker := range [][]byte{[]byte("<html"), []byte("<table"), []byte("<!doctype")} {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Info describes an artifact for run history and API responses.
type Info struct {
	Name      string     `json:"name,omitempty"`
	Kind      FormatKind `json:"kind"`
	MIME      string     `json:"mime"`
	Extension string     `json:"extension,omitempty"`
	Size      int        `json:"size"`
}

// Describe classifies the artifact and attaches a content-sniffed MIME type.
// The MIME type is informational; Kind always comes from Classify.
func Describe(a RawArtifact) Info {
	return Info{
		Name:      a.Name,
		Kind:      Classify(a),
		MIME:      mimetype.Detect(a.Data).String(),
		Extension: NormalizeExtension(a.Extension),
		Size:      len(a.Data),
	}
}

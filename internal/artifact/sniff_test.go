package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		artifact RawArtifact
		want     FormatKind
	}{
		{
			name:     "html doctype",
			artifact: RawArtifact{Data: []byte("<!DOCTYPE html><table><tr><th>A</th></tr><tr><td>1</td></tr></table>")},
			want:     KindTabularHTML,
		},
		{
			name:     "html tag uppercase",
			artifact: RawArtifact{Data: []byte("\n\n<HTML><body></body></HTML>")},
			want:     KindTabularHTML,
		},
		{
			name:     "html mislabeled as xls",
			artifact: RawArtifact{Extension: ".xls", Data: []byte("<html><table></table></html>")},
			want:     KindTabularHTML,
		},
		{
			name:     "zip magic",
			artifact: RawArtifact{Extension: ".csv", Data: []byte("PK\x03\x04\x14\x00\x06\x00")},
			want:     KindModernSpreadsheet,
		},
		{
			name:     "cfb magic",
			artifact: RawArtifact{Data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}},
			want:     KindLegacySpreadsheet,
		},
		{
			name:     "consistent commas",
			artifact: RawArtifact{Data: []byte("AWB No,Date,Status\n123,2025-01-01,OK\n456,2025-01-02,HOLD\n")},
			want:     KindDelimitedText,
		},
		{
			name:     "quoted commas do not count",
			artifact: RawArtifact{Data: []byte("a,b\n\"x, y\",z\n1,2\n")},
			want:     KindDelimitedText,
		},
		{
			name:     "inconsistent commas fall back to extension",
			artifact: RawArtifact{Extension: "XLSX", Data: []byte("a,b,c\nd\ne,f\n")},
			want:     KindModernSpreadsheet,
		},
		{
			name:     "header-only export mislabeled as xls",
			artifact: RawArtifact{Extension: ".xls", Data: []byte("AWB No,Status\n")},
			want:     KindDelimitedText,
		},
		{
			name:     "single line without newline falls back to extension",
			artifact: RawArtifact{Extension: ".xls", Data: []byte("AWB No,Status")},
			want:     KindLegacySpreadsheet,
		},
		{
			name:     "single unterminated line after blank line",
			artifact: RawArtifact{Extension: ".xls", Data: []byte("\nAWB No,Status")},
			want:     KindLegacySpreadsheet,
		},
		{
			name:     "csv extension",
			artifact: RawArtifact{Extension: ".csv", Data: []byte("just one line")},
			want:     KindDelimitedText,
		},
		{
			name:     "htm extension",
			artifact: RawArtifact{Extension: ".htm", Data: []byte("plain")},
			want:     KindTabularHTML,
		},
		{
			name:     "unknown",
			artifact: RawArtifact{Extension: ".pdf", Data: []byte("%PDF-1.4")},
			want:     KindUnknown,
		},
		{
			name:     "empty",
			artifact: RawArtifact{},
			want:     KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.artifact))
		})
	}
}

func TestClassify_IgnoresMarkersPastPrefix(t *testing.T) {
	data := strings.Repeat("x", 3000) + "<html>"
	assert.Equal(t, KindUnknown, Classify(RawArtifact{Data: []byte(data)}))
}

func TestClassify_InvalidUTF8Sample(t *testing.T) {
	data := []byte("na\xffme,city\nAn,H\xe0 N\xf4i\nBinh,Hue\n")
	assert.Equal(t, KindDelimitedText, Classify(RawArtifact{Data: data}))
}

func TestNew(t *testing.T) {
	a := New("Report.XLS", []byte("x"))
	assert.Equal(t, ".xls", a.Extension)
	assert.Equal(t, "Report.XLS", a.Name)
	assert.False(t, a.Empty())
	assert.True(t, RawArtifact{}.Empty())
}

func TestDescribe(t *testing.T) {
	info := Describe(New("report.html", []byte("<!doctype html><html><body><table></table></body></html>")))
	assert.Equal(t, KindTabularHTML, info.Kind)
	assert.Contains(t, info.MIME, "text/html")
	assert.Equal(t, ".html", info.Extension)
}

func TestHasHTMLMarkers(t *testing.T) {
	assert.True(t, HasHTMLMarkers([]byte("  <TABLE><tr></tr></TABLE>")))
	assert.False(t, HasHTMLMarkers([]byte("a,b\n1,2")))
}

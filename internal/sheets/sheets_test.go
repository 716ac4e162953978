package sheets

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"carrier-reports/internal/profiles"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var records = [][]string{
	{"Airway Bill", "Consignee", "Cash/Cod Amt"},
	{"123", "Jane, Doe", "1500.00"},
	{"456", "", ""},
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Courier", sheetName("Courier!A1"))
	assert.Equal(t, "My Sheet", sheetName("'My Sheet'!B2:D"))
	assert.Equal(t, "Parcel", sheetName("Parcel"))
	assert.Equal(t, "", sheetName(""))
}

func TestFileUploader_CSV(t *testing.T) {
	dir := t.TempDir()
	uploader := NewFileUploader(dir, discardLogger())

	location, err := uploader.Upload(context.Background(), profiles.Destination{Range: "Courier!A1"}, records)
	require.NoError(t, err)

	path := filepath.Join(dir, "courier.csv")
	assert.Equal(t, "file:"+path, location)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	got, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// A second upload replaces the first
	_, err = uploader.Upload(context.Background(), profiles.Destination{Range: "Courier!A1"}, records[:1])
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Airway Bill,Consignee,Cash/Cod Amt\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileUploader_XLSX(t *testing.T) {
	dir := t.TempDir()
	uploader := NewFileUploader(dir, discardLogger())

	dest := profiles.Destination{Range: "Fulfillment!A1", File: "reports/fulfillment.xlsx"}
	_, err := uploader.Upload(context.Background(), dest, records)
	require.NoError(t, err)

	f, err := excelize.OpenFile(filepath.Join(dir, "reports", "fulfillment.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Fulfillment"}, f.GetSheetList())
	rows, err := f.GetRows("Fulfillment")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, records[1], rows[1])
	assert.Equal(t, "456", rows[2][0])
}

func TestFileUploader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileUploader(t.TempDir(), discardLogger()).Upload(ctx, profiles.Destination{}, records)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingUploader struct {
	calls []profiles.Destination
}

func (r *recordingUploader) Upload(ctx context.Context, dest profiles.Destination, records [][]string) (string, error) {
	r.calls = append(r.calls, dest)
	return "recorded", nil
}

func TestRouter(t *testing.T) {
	sheets := &recordingUploader{}
	files := &recordingUploader{}
	router := NewRouter(sheets, files)

	_, err := router.Upload(context.Background(), profiles.Destination{Range: "Courier!A1"}, records)
	require.NoError(t, err)
	_, err = router.Upload(context.Background(), profiles.Destination{File: "out.csv"}, records)
	require.NoError(t, err)

	assert.Len(t, sheets.calls, 1)
	assert.Len(t, files.calls, 1)

	noSheets := NewRouter(nil, files)
	_, err = noSheets.Upload(context.Background(), profiles.Destination{Range: "Parcel!A1"}, records)
	require.NoError(t, err)
	assert.Len(t, files.calls, 2)
}

type fakeSheetsAPI struct {
	mu          sync.Mutex
	requests    []string
	values      [][]string
	inputOption string
	failUpdates int
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	if strings.HasSuffix(r.URL.Path, ":clear") {
		io.WriteString(w, `{"spreadsheetId":"sheet-1","clearedRange":"Courier!A1:Z100"}`)
		return
	}

	if f.failUpdates > 0 {
		f.failUpdates--
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"code":503,"message":"backend unavailable"}}`)
		return
	}

	var body struct {
		Values [][]string `json:"values"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	f.values = body.Values
	f.inputOption = r.URL.Query().Get("valueInputOption")
	io.WriteString(w, `{"updatedRows":3}`)
}

func newTestSheetsUploader(t *testing.T, api *fakeSheetsAPI) *SheetsUploader {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	service, err := gsheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication())
	require.NoError(t, err)

	return NewSheetsUploaderWithService(service, Config{SpreadsheetID: "sheet-1"}, discardLogger())
}

func TestSheetsUploader_ClearsThenWrites(t *testing.T) {
	api := &fakeSheetsAPI{}
	uploader := newTestSheetsUploader(t, api)

	location, err := uploader.Upload(context.Background(), profiles.Destination{Range: "Courier!A1"}, records)
	require.NoError(t, err)
	assert.Equal(t, "sheets:sheet-1/Courier!A1", location)

	require.Len(t, api.requests, 2)
	assert.True(t, strings.HasPrefix(api.requests[0], "POST /v4/spreadsheets/sheet-1/values/Courier:clear"), api.requests[0])
	assert.True(t, strings.HasPrefix(api.requests[1], "PUT /v4/spreadsheets/sheet-1/values/Courier!A1"), api.requests[1])
	assert.Equal(t, "RAW", api.inputOption)
	assert.Equal(t, records, api.values)
}

func TestSheetsUploader_RetriesServerErrors(t *testing.T) {
	api := &fakeSheetsAPI{failUpdates: 1}
	uploader := newTestSheetsUploader(t, api)

	_, err := uploader.Upload(context.Background(), profiles.Destination{SpreadsheetID: "sheet-1", Range: "Parcel!A1"}, records)
	require.NoError(t, err)
	assert.Len(t, api.requests, 3)
}

func TestSheetsUploader_GivesUp(t *testing.T) {
	api := &fakeSheetsAPI{failUpdates: 10}
	uploader := newTestSheetsUploader(t, api)

	_, err := uploader.Upload(context.Background(), profiles.Destination{Range: "Parcel!A1"}, records)
	assert.Error(t, err)
	assert.Len(t, api.requests, 4)
}

func TestNewSheetsUploader_RequiresCredentials(t *testing.T) {
	_, err := NewSheetsUploader(context.Background(), Config{SpreadsheetID: "sheet-1"}, discardLogger())
	assert.Error(t, err)
}

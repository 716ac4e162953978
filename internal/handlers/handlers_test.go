package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrier-reports/internal/api"
	"carrier-reports/internal/artifact"
	"carrier-reports/internal/database"
	"carrier-reports/internal/pipeline"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/workers"
)

const parcelExport = "Tracking No,Order Number,Customer,Parcel Status\n'00123,ORD-1,Ann,Delivered\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeScheduler struct {
	paused  bool
	stopped bool
	err     error
	run     *database.Run
	forced  bool
}

func (f *fakeScheduler) Trigger(name string, force bool) (*database.Run, error) {
	f.forced = force
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}
func (f *fakeScheduler) Pause()          { f.paused = true }
func (f *fakeScheduler) Resume()         { f.paused = false }
func (f *fakeScheduler) IsPaused() bool  { return f.paused }
func (f *fakeScheduler) IsRunning() bool { return !f.stopped }

type fakeArtifactRunner struct {
	got artifact.RawArtifact
}

func (f *fakeArtifactRunner) RunArtifact(ctx context.Context, p *profiles.Profile, a artifact.RawArtifact) (*database.Run, error) {
	f.got = a
	return &database.Run{ID: "run-1", Profile: p.Name, Status: database.StatusSuccess}, nil
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHealthCheck(t *testing.T) {
	t.Run("HealthyDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		handler := NewHealthHandler(db, &fakeScheduler{paused: true})

		w := httptest.NewRecorder()
		handler.HealthCheck(w, httptest.NewRequest("GET", "/api/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response api.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "ok", response.Database)
		require.NotNil(t, response.Sync)
		assert.True(t, response.Sync.Paused)
	})

	t.Run("UnhealthyDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()
		handler := NewHealthHandler(db, nil)

		w := httptest.NewRecorder()
		handler.HealthCheck(w, httptest.NewRequest("GET", "/api/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response api.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.NotEmpty(t, response.Message)
		assert.Nil(t, response.Sync)
	})
}

func TestAdminHandler(t *testing.T) {
	scheduler := &fakeScheduler{}
	handler := NewAdminHandler(scheduler, testLogger())

	w := httptest.NewRecorder()
	handler.PauseSync(w, httptest.NewRequest("POST", "/api/sync/pause", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, scheduler.paused)

	w = httptest.NewRecorder()
	handler.GetSyncStatus(w, httptest.NewRequest("GET", "/api/sync/status", nil))
	assert.JSONEq(t, `{"running":true,"paused":true}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.ResumeSync(w, httptest.NewRequest("POST", "/api/sync/resume", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, scheduler.paused)
}

func TestProfileHandler(t *testing.T) {
	db := setupTestDB(t)
	run := &database.Run{Profile: "parcel"}
	require.NoError(t, db.Runs.Create(run))

	handler := NewProfileHandler(profiles.Default(), db.Runs, testLogger())

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.GetProfiles(w, httptest.NewRequest("GET", "/api/profiles", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var summaries []struct {
			Name      string        `json:"name"`
			Schema    []string      `json:"schema"`
			Enabled   bool          `json:"enabled"`
			HasPortal bool          `json:"has_portal"`
			LastRun   *database.Run `json:"last_run"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&summaries))
		require.Len(t, summaries, 3)
		assert.Equal(t, "courier", summaries[0].Name)
		assert.Nil(t, summaries[0].LastRun)
		assert.Equal(t, "parcel", summaries[2].Name)
		assert.True(t, summaries[2].Enabled)
		assert.False(t, summaries[2].HasPortal)
		require.NotNil(t, summaries[2].LastRun)
		assert.Equal(t, run.ID, summaries[2].LastRun.ID)
	})

	t.Run("get missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := withURLParams(httptest.NewRequest("GET", "/api/profiles/nope", nil), map[string]string{"name": "nope"})
		handler.GetProfile(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func newConvertHandler(runner ArtifactRunner) *ConvertHandler {
	return NewConvertHandler(profiles.Default(), pipeline.NewProcessor(testLogger()), runner, 1<<20, testLogger())
}

func TestConvertHandler_Sniff(t *testing.T) {
	handler := newConvertHandler(&fakeArtifactRunner{})

	body, contentType := multipartBody(t, "file", "export.xls", "<html><table><tr><th>A</th></tr></table></html>")
	req := httptest.NewRequest("POST", "/api/sniff", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Sniff(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var info artifact.Info
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, artifact.KindTabularHTML, info.Kind)
	assert.Equal(t, "export.xls", info.Name)
	assert.Equal(t, ".xls", info.Extension)
}

func TestConvertHandler_Convert(t *testing.T) {
	runner := &fakeArtifactRunner{}
	handler := newConvertHandler(runner)

	convert := func(query string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, "file", "parcel.csv", parcelExport)
		req := httptest.NewRequest("POST", "/api/profiles/parcel/convert"+query, body)
		req.Header.Set("Content-Type", contentType)
		req = withURLParams(req, map[string]string{"name": "parcel"})
		w := httptest.NewRecorder()
		handler.Convert(w, req)
		return w
	}

	t.Run("json", func(t *testing.T) {
		w := convert("")
		require.Equal(t, http.StatusOK, w.Code)

		var response api.ConvertResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "parcel", response.Profile)
		assert.Equal(t, []string{"Tracking Number", "Order ID", "Recipient", "Status", "Last Update"}, response.Columns)
		require.Len(t, response.Rows, 1)
		assert.Equal(t, []string{"00123", "ORD-1", "Ann", "Delivered", ""}, response.Rows[0])
		assert.Equal(t, []string{"Last Update"}, response.Missing)
		assert.Equal(t, 1, response.SourceRows)
	})

	t.Run("csv", func(t *testing.T) {
		w := convert("?format=csv")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "Tracking Number,Order ID,Recipient,Status,Last Update\n00123,ORD-1,Ann,Delivered,\n", w.Body.String())
	})

	t.Run("upload", func(t *testing.T) {
		w := convert("?upload=true")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "parcel.csv", runner.got.Name)

		var run database.Run
		require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
		assert.Equal(t, "run-1", run.ID)
	})

	t.Run("upload without runner", func(t *testing.T) {
		bare := newConvertHandler(nil)
		body, contentType := multipartBody(t, "file", "parcel.csv", parcelExport)
		req := httptest.NewRequest("POST", "/api/profiles/parcel/convert?upload=true", body)
		req.Header.Set("Content-Type", contentType)
		req = withURLParams(req, map[string]string{"name": "parcel"})
		w := httptest.NewRecorder()
		bare.Convert(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		body, contentType := multipartBody(t, "attachment", "parcel.csv", parcelExport)
		req := httptest.NewRequest("POST", "/api/profiles/parcel/convert", body)
		req.Header.Set("Content-Type", contentType)
		req = withURLParams(req, map[string]string{"name": "parcel"})
		w := httptest.NewRecorder()
		handler.Convert(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		small := NewConvertHandler(profiles.Default(), pipeline.NewProcessor(testLogger()), runner, 16, testLogger())
		body, contentType := multipartBody(t, "file", "parcel.csv", parcelExport)
		req := httptest.NewRequest("POST", "/api/profiles/parcel/convert", body)
		req.Header.Set("Content-Type", contentType)
		req = withURLParams(req, map[string]string{"name": "parcel"})
		w := httptest.NewRecorder()
		small.Convert(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unknown profile", func(t *testing.T) {
		req := withURLParams(httptest.NewRequest("POST", "/api/profiles/nope/convert", nil), map[string]string{"name": "nope"})
		w := httptest.NewRecorder()
		handler.Convert(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRunHandler_GetRuns(t *testing.T) {
	db := setupTestDB(t)
	for _, profile := range []string{"courier", "parcel", "courier"} {
		require.NoError(t, db.Runs.Create(&database.Run{Profile: profile}))
	}
	handler := NewRunHandler(db.Runs, &fakeScheduler{}, testLogger())

	w := httptest.NewRecorder()
	handler.GetRuns(w, httptest.NewRequest("GET", "/api/runs?profile=courier", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var runs []database.Run
	require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
	assert.Len(t, runs, 2)

	w = httptest.NewRecorder()
	handler.GetRuns(w, httptest.NewRequest("GET", "/api/runs?limit=1", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
	assert.Len(t, runs, 1)

	w = httptest.NewRecorder()
	handler.GetRuns(w, httptest.NewRequest("GET", "/api/runs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	t.Run("by id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := withURLParams(httptest.NewRequest("GET", "/api/runs/"+runs[0].ID, nil), map[string]string{"id": runs[0].ID})
		handler.GetRun(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		req = withURLParams(httptest.NewRequest("GET", "/api/runs/missing", nil), map[string]string{"id": "missing"})
		handler.GetRun(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRunHandler_TriggerRun(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"unknown profile", profiles.ErrNotFound, http.StatusNotFound},
		{"no portal", workers.ErrNoPortal, http.StatusUnprocessableEntity},
		{"in progress", workers.ErrRunInProgress, http.StatusConflict},
		{"rate limited", &workers.RateLimitError{Profile: "courier", RemainingTime: 90 * time.Second}, http.StatusTooManyRequests},
		{"stopped", workers.ErrStopped, http.StatusServiceUnavailable},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := &fakeScheduler{err: tt.err, run: &database.Run{ID: "abc", Profile: "courier", Status: database.StatusRunning}}
			handler := NewRunHandler(nil, scheduler, testLogger())

			req := withURLParams(httptest.NewRequest("POST", "/api/profiles/courier/run?force=true", nil), map[string]string{"name": "courier"})
			w := httptest.NewRecorder()
			handler.TriggerRun(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, scheduler.forced)
			if tt.wantStatus == http.StatusTooManyRequests {
				assert.Equal(t, "90", w.Header().Get("Retry-After"))
			}
			if tt.err != nil {
				assert.True(t, strings.Contains(w.Body.String(), `"error"`))
			}
		})
	}
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestConvertHandler_CSVWriteErrorLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	handler := NewConvertHandler(profiles.Default(), pipeline.NewProcessor(testLogger()), nil, 1<<20, logger)

	body, contentType := multipartBody(t, "file", "parcel.csv", parcelExport)
	req := httptest.NewRequest("POST", "/api/profiles/parcel/convert?format=csv", body)
	req.Header.Set("Content-Type", contentType)
	req = withURLParams(req, map[string]string{"name": "parcel"})

	handler.Convert(failingWriter{httptest.NewRecorder()}, req)

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "Failed to write CSV response")
	assert.Contains(t, logs.String(), "connection reset")
}

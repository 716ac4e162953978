package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"carrier-reports/internal/api"
	"carrier-reports/internal/database"
)

func TestNewClient_RemovesTrailingSlash(t *testing.T) {
	client := NewClient("http://example.com/")

	if client.baseURL != "http://example.com" {
		t.Errorf("Expected baseURL to be 'http://example.com', got '%s'", client.baseURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", client.httpClient.Timeout)
	}
}

func TestNewClientFromConfig(t *testing.T) {
	config := DefaultConfig()
	config.APIKey = "secret"
	config.RequestTimeout = time.Minute

	client := NewClientFromConfig(config)
	if client.apiKey != "secret" {
		t.Errorf("Expected API key to be carried over, got '%s'", client.apiKey)
	}
	if client.httpClient.Timeout != time.Minute {
		t.Errorf("Expected timeout to be 1m, got %v", client.httpClient.Timeout)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/api/health" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"status":"healthy","database":"ok","sync":{"running":true,"paused":false}}`))
	}))
	defer server.Close()

	health, err := NewClient(server.URL).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if health.Status != "healthy" || health.Sync == nil || !health.Sync.Running {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"profile courier ran 3m ago"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).TriggerRun(context.Background(), "courier", false)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected code 429, got %d", apiErr.Code)
	}
	if apiErr.Message != "profile courier ran 3m ago" {
		t.Errorf("Unexpected message: %s", apiErr.Message)
	}
	if apiErr.RetryAfter != 2*time.Minute {
		t.Errorf("Expected retry after 2m, got %v", apiErr.RetryAfter)
	}
}

func TestAPIErrorPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewClient(server.URL).PauseSync(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Message != "401 Unauthorized" {
		t.Errorf("Expected status text fallback, got '%s'", apiErr.Message)
	}
}

func TestTriggerRun_SendsAPIKeyAndForce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/profiles/courier/run" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("force") != "true" {
			t.Errorf("Expected force=true, got '%s'", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got '%s'", got)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(database.Run{ID: "run-1", Profile: "courier", Status: database.StatusRunning})
	}))
	defer server.Close()

	config := DefaultConfig()
	config.ServerURL = server.URL
	config.APIKey = "secret"

	run, err := NewClientFromConfig(config).TriggerRun(context.Background(), "courier", true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.ID != "run-1" || run.Status != database.StatusRunning {
		t.Errorf("Unexpected run: %+v", run)
	}
}

func TestListRuns_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("profile") != "parcel" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]database.Run{{ID: "a"}, {ID: "b"}})
	}))
	defer server.Close()

	runs, err := NewClient(server.URL).ListRuns(context.Background(), RunListOptions{Profile: "parcel", Limit: 5})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestWaitForRun(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		run := database.Run{ID: "run-1", Status: database.StatusRunning}
		if atomic.AddInt32(&polls, 1) >= 3 {
			run.Status = database.StatusDegraded
		}
		json.NewEncoder(w).Encode(run)
	}))
	defer server.Close()

	var seen []string
	run, err := NewClient(server.URL).WaitForRun(context.Background(), "run-1", time.Millisecond, func(r *database.Run) {
		seen = append(seen, r.Status)
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.Status != database.StatusDegraded {
		t.Errorf("Expected degraded, got %s", run.Status)
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 polls, got %d", len(seen))
	}
}

func TestWaitForRun_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(database.Run{ID: "run-1", Status: database.StatusRunning})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL).WaitForRun(ctx, "run-1", 5*time.Millisecond, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestConvert_UploadsMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte("Tracking No,Date\nA1,2024-01-02\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profiles/courier/convert" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected file field: %v", err)
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "export.csv" || len(data) == 0 {
			t.Errorf("Unexpected upload %s (%d bytes)", header.Filename, len(data))
		}
		json.NewEncoder(w).Encode(api.ConvertResponse{
			Profile: "courier",
			Columns: []string{"tracking_number"},
			Rows:    [][]string{{"A1"}},
			Missing: []string{},
		})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).Convert(context.Background(), "courier", path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "A1" {
		t.Errorf("Unexpected rows: %v", result.Rows)
	}
}

func TestConvert_MissingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").Convert(context.Background(), "courier", filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestConvertAndUpload_SendsAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte("AWB No,Status\n1,Delivered\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("upload") != "true" {
			t.Errorf("Expected upload=true, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(database.Run{ID: "run-1", Profile: "courier", Status: database.StatusSuccess})
	}))
	defer server.Close()

	config := DefaultConfig()
	config.ServerURL = server.URL
	config.APIKey = "secret"

	run, err := NewClientFromConfig(config).ConvertAndUpload(context.Background(), "courier", path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if run.ID != "run-1" {
		t.Errorf("Unexpected run: %+v", run)
	}

	_, err = NewClient(server.URL).ConvertAndUpload(context.Background(), "courier", path)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 API error without key, got %v", err)
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"carrier-reports/internal/api"
	"carrier-reports/internal/artifact"
	"carrier-reports/internal/database"
)

// Client talks to the report service API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 30*time.Second)
}

// NewClientWithTimeout creates a new API client with a per-request timeout
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientFromConfig builds a client from CLI configuration
func NewClientFromConfig(cfg *Config) *Client {
	c := NewClientWithTimeout(cfg.ServerURL, cfg.RequestTimeout)
	c.apiKey = cfg.APIKey
	return c
}

// APIError represents an error from the API
type APIError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("API error %d: %s (retry in %s)", e.Code, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// RunListOptions filters run history
type RunListOptions struct {
	Profile string
	Limit   int
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do performs the request and decodes a JSON response into out when non-nil
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Code: resp.StatusCode, Message: resp.Status}

	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}
	return apiErr
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// HealthCheck checks if the API server is healthy
func (c *Client) HealthCheck(ctx context.Context) (*api.HealthResponse, error) {
	var health api.HealthResponse
	if err := c.get(ctx, "/api/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListProfiles returns every configured profile
func (c *Client) ListProfiles(ctx context.Context) ([]api.ProfileSummary, error) {
	var list []api.ProfileSummary
	if err := c.get(ctx, "/api/profiles", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetProfile returns one profile with its last run
func (c *Client) GetProfile(ctx context.Context, name string) (*api.ProfileSummary, error) {
	var summary api.ProfileSummary
	if err := c.get(ctx, "/api/profiles/"+url.PathEscape(name), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListRuns returns recent runs, newest first
func (c *Client) ListRuns(ctx context.Context, opts RunListOptions) ([]database.Run, error) {
	query := url.Values{}
	if opts.Profile != "" {
		query.Set("profile", opts.Profile)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	path := "/api/runs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var runs []database.Run
	if err := c.get(ctx, path, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns a run by ID
func (c *Client) GetRun(ctx context.Context, id string) (*database.Run, error) {
	var run database.Run
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// TriggerRun starts a portal run. The returned run is still in progress.
func (c *Client) TriggerRun(ctx context.Context, profile string, force bool) (*database.Run, error) {
	path := "/api/profiles/" + url.PathEscape(profile) + "/run"
	if force {
		path += "?force=true"
	}

	var run database.Run
	if err := c.post(ctx, path, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// WaitForRun polls a run until it reaches a terminal status or ctx ends.
// onPoll, when set, sees every intermediate state.
func (c *Client) WaitForRun(ctx context.Context, id string, interval time.Duration, onPoll func(*database.Run)) (*database.Run, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(run)
		}
		if run.Finished() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncStatus returns the scheduler state
func (c *Client) SyncStatus(ctx context.Context) (*api.SyncStatus, error) {
	var status api.SyncStatus
	if err := c.get(ctx, "/api/sync/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PauseSync pauses scheduled runs
func (c *Client) PauseSync(ctx context.Context) error {
	return c.post(ctx, "/api/sync/pause", nil)
}

// ResumeSync resumes scheduled runs
func (c *Client) ResumeSync(ctx context.Context) error {
	return c.post(ctx, "/api/sync/resume", nil)
}

// Sniff uploads a file and returns its detected format
func (c *Client) Sniff(ctx context.Context, path string) (*artifact.Info, error) {
	var info artifact.Info
	if err := c.upload(ctx, "/api/sniff", path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Convert uploads a file for conversion against a profile
func (c *Client) Convert(ctx context.Context, profile, path string) (*api.ConvertResponse, error) {
	var result api.ConvertResponse
	if err := c.upload(ctx, "/api/profiles/"+url.PathEscape(profile)+"/convert", path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ConvertAndUpload converts a file and writes it to the profile's
// destination, recording a run
func (c *Client) ConvertAndUpload(ctx context.Context, profile, path string) (*database.Run, error) {
	var run database.Run
	if err := c.upload(ctx, "/api/profiles/"+url.PathEscape(profile)+"/convert?upload=true", path, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) upload(ctx context.Context, path, file string, out interface{}) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req, out)
}

package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"carrier-reports/internal/profiles"
)

const defaultRange = "Sheet1!A1"

// Config holds Google Sheets API configuration
type Config struct {
	SpreadsheetID string

	// Service account key file
	CredentialsFile string

	// Installed-app OAuth2 client with a long-lived refresh token
	ClientID     string
	ClientSecret string
	RefreshToken string

	// Endpoint overrides the API base URL
	Endpoint string

	MaxAttempts int
	RetryDelay  time.Duration
}

// SheetsUploader replaces a sheet's contents through the Sheets API
type SheetsUploader struct {
	service *gsheets.Service
	config  Config
	logger  *slog.Logger
}

// NewSheetsUploader creates a Sheets client from a refresh token or a
// service account key file
func NewSheetsUploader(ctx context.Context, config Config, logger *slog.Logger) (*SheetsUploader, error) {
	opts := []option.ClientOption{}

	switch {
	case config.RefreshToken != "":
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       []string{gsheets.SpreadsheetsScope},
			Endpoint:     google.Endpoint,
		}
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		opts = append(opts, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	case config.CredentialsFile != "":
		opts = append(opts,
			option.WithCredentialsFile(config.CredentialsFile),
			option.WithScopes(gsheets.SpreadsheetsScope))
	default:
		return nil, errors.New("sheets credentials are not configured")
	}

	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	return NewSheetsUploaderWithService(service, config, logger), nil
}

// NewSheetsUploaderWithService wraps an existing Sheets service
func NewSheetsUploaderWithService(service *gsheets.Service, config Config, logger *slog.Logger) *SheetsUploader {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	return &SheetsUploader{service: service, config: config, logger: logger}
}

// Upload clears the destination sheet and writes records from the range's
// top-left cell as raw values.
func (u *SheetsUploader) Upload(ctx context.Context, dest profiles.Destination, records [][]string) (string, error) {
	spreadsheetID := dest.SpreadsheetID
	if spreadsheetID == "" {
		spreadsheetID = u.config.SpreadsheetID
	}
	if spreadsheetID == "" {
		return "", errors.New("no spreadsheet id for destination")
	}

	rng := dest.Range
	if rng == "" {
		rng = defaultRange
	}
	sheet := sheetName(rng)

	err := u.retry(ctx, "clear", func() error {
		_, err := u.service.Spreadsheets.Values.Clear(spreadsheetID, sheet, &gsheets.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to clear sheet %q: %w", sheet, err)
	}

	values := make([][]interface{}, len(records))
	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		values[i] = row
	}

	var updated int64
	err = u.retry(ctx, "update", func() error {
		resp, err := u.service.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		updated = resp.UpdatedRows
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write range %q: %w", rng, err)
	}

	u.logger.Info("Uploaded rows to Google Sheets", "spreadsheet_id", spreadsheetID, "range", rng, "rows", updated)
	return "sheets:" + spreadsheetID + "/" + rng, nil
}

func (u *SheetsUploader) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	delay := u.config.RetryDelay
	for attempt := 1; attempt <= u.config.MaxAttempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if attempt == u.config.MaxAttempts {
			break
		}

		u.logger.Warn("Sheets request failed, retrying", "op", op, "attempt", attempt, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

func retryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
}

// Copyright 2024 Carrier Reports
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"carrier-reports/internal/config"
	"carrier-reports/internal/database"
	"carrier-reports/internal/handlers"
	"carrier-reports/internal/pipeline"
	"carrier-reports/internal/portals"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/server"
	"carrier-reports/internal/sheets"
	"carrier-reports/internal/workers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	registry, err := profiles.Load(cfg.ProfilesFile)
	if err != nil {
		return err
	}
	logger.Info("Profiles loaded", "profiles", registry.Names(), "file", cfg.ProfilesFile)

	// Initialize database
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database initialized", "path", cfg.DBPath)

	if n, err := db.Runs.MarkInterrupted(); err != nil {
		logger.Warn("Failed to close out interrupted runs", "error", err)
	} else if n > 0 {
		logger.Warn("Marked interrupted runs as failed", "count", n)
	}

	// Headless browser pool for portal collection
	if err := portals.ValidateChromeAvailable(); err != nil {
		logger.Warn("Chrome not available, portal runs will fail", "error", err)
	}
	headless := portals.DefaultHeadlessOptions()
	headless.Headless = cfg.BrowserHeadless
	headless.Timeout = cfg.RunTimeout
	if cfg.BrowserUserAgent != "" {
		headless.UserAgent = cfg.BrowserUserAgent
	}
	pool := portals.NewBrowserPool(&portals.BrowserPoolConfig{
		MaxBrowsers:     cfg.BrowserMaxInstances,
		IdleTimeout:     cfg.BrowserIdleTimeout,
		MaxIdleBrowsers: 1,
	}, headless)
	defer pool.Close()
	collector := portals.NewCollector(pool, cfg.DownloadTimeout, logger)

	// Upload destinations
	var sheetsUploader sheets.Uploader
	if cfg.UsesSheets() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		uploader, err := sheets.NewSheetsUploader(ctx, sheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			CredentialsFile: cfg.SheetsCredentialsFile,
			ClientID:        cfg.SheetsClientID,
			ClientSecret:    cfg.SheetsClientSecret,
			RefreshToken:    cfg.SheetsRefreshToken,
		}, logger)
		cancel()
		if err != nil {
			return err
		}
		sheetsUploader = uploader
		logger.Info("Google Sheets upload enabled", "spreadsheet_id", cfg.SpreadsheetID)
	} else {
		logger.Info("Google Sheets not configured, writing reports to files", "dir", cfg.OutputDir)
	}
	uploader := sheets.NewRouter(sheetsUploader, sheets.NewFileUploader(cfg.OutputDir, logger))

	processor := pipeline.NewProcessor(logger)
	runner := workers.NewRunner(cfg, collector, processor, uploader, db.Runs, logger)

	scheduler := workers.NewSyncScheduler(cfg, registry, runner, db.Runs, logger)
	scheduler.Start()
	defer scheduler.Stop()

	router := server.NewRouter(server.Handlers{
		Health:   handlers.NewHealthHandler(db, scheduler),
		Profiles: handlers.NewProfileHandler(registry, db.Runs, logger),
		Convert:  handlers.NewConvertHandler(registry, processor, runner, cfg.MaxUploadBytes, logger),
		Runs:     handlers.NewRunHandler(db.Runs, scheduler, logger),
		Admin:    handlers.NewAdminHandler(scheduler, logger),
	}, server.RouterOptions{
		AdminAPIKey:      cfg.AdminAPIKey,
		DisableAdminAuth: cfg.DisableAdminAuth,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,

		// Timeouts; convert?upload=true writes to Sheets inline
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Handle server startup and graceful shutdown
	return server.HandleSignals(context.Background(), srv, 30*time.Second, logger)
}

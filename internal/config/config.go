package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBPath string

	// Logging
	LogLevel string

	// Profiles file layered over the built-in profiles
	ProfilesFile string

	// Scheduled sync
	SyncEnabled      bool
	SyncInterval     time.Duration
	SyncInitialDelay time.Duration
	RunTimeout       time.Duration
	MinRunInterval   time.Duration
	DisableRateLimit bool

	// Headless browser
	BrowserHeadless     bool
	BrowserMaxInstances int
	BrowserIdleTimeout  time.Duration
	BrowserUserAgent    string
	DownloadTimeout     time.Duration

	// Google Sheets upload
	SpreadsheetID         string
	SheetsCredentialsFile string
	SheetsClientID        string
	SheetsClientSecret    string
	SheetsRefreshToken    string

	// Local file output, used when Sheets is not configured
	OutputDir string

	// Upload limit for the convert endpoint
	MaxUploadBytes int64

	// Admin API
	AdminAPIKey      string
	DisableAdminAuth bool

	// Portal logins keyed by profile name
	Credentials map[string]Credential
}

// Credential is a portal login.
type Credential struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid server port: %s", c.ServerPort)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValidLogLevel := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValidLogLevel = true
			break
		}
	}
	if !isValidLogLevel {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.SyncInitialDelay < 0 {
		return fmt.Errorf("sync initial delay must be non-negative")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive")
	}
	if c.MinRunInterval < 0 {
		return fmt.Errorf("minimum run interval must be non-negative")
	}

	if c.BrowserMaxInstances < 1 || c.BrowserMaxInstances > 10 {
		return fmt.Errorf("browser max instances must be between 1 and 10")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if c.SheetsRefreshToken != "" && (c.SheetsClientID == "" || c.SheetsClientSecret == "") {
		return fmt.Errorf("sheets refresh token requires client id and client secret")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	if !c.DisableAdminAuth && c.AdminAPIKey == "" {
		return fmt.Errorf("admin API key is required unless admin auth is disabled")
	}

	return nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.ServerHost + ":" + c.ServerPort
}

// SlogLevel maps the configured level name to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UsesSheets reports whether Google Sheets credentials are configured
func (c *Config) UsesSheets() bool {
	return c.SheetsCredentialsFile != "" || c.SheetsRefreshToken != ""
}

// CredentialsFor returns the portal login for a profile. Environment
// variables REPORTS_<PROFILE>_USERNAME and REPORTS_<PROFILE>_PASSWORD take
// precedence over the config file.
func (c *Config) CredentialsFor(profile string) Credential {
	cred := c.Credentials[profile]
	prefix := "REPORTS_" + strings.ToUpper(strings.ReplaceAll(profile, "-", "_"))
	cred.Username = getEnvOrDefault(prefix+"_USERNAME", cred.Username)
	cred.Password = getEnvOrDefault(prefix+"_PASSWORD", cred.Password)
	return cred
}

// GetDisableRateLimit returns the rate limit disable flag
func (c *Config) GetDisableRateLimit() bool {
	return c.DisableRateLimit
}

// GetMinRunInterval returns the minimum spacing between runs of one profile
func (c *Config) GetMinRunInterval() time.Duration {
	return c.MinRunInterval
}

// Load loads configuration from the environment, a .env file and an optional
// config file
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return LoadServerConfig()
}


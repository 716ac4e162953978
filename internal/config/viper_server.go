package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadServerConfigWithViper loads server configuration using Viper
func LoadServerConfigWithViper(v *viper.Viper) (*Config, error) {
	setServerDefaults(v)
	setupServerEnvBinding(v)

	if err := loadConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &Config{}
	if err := unmarshalServerConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setServerDefaults sets default values for server configuration
func setServerDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "localhost")

	// Database defaults
	v.SetDefault("database.path", "./reports.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")

	v.SetDefault("profiles.file", "")

	// Sync defaults
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", "1h")
	v.SetDefault("sync.initial_delay", "30s")
	v.SetDefault("sync.run_timeout", "10m")
	v.SetDefault("sync.min_run_interval", "15m")
	v.SetDefault("rate_limit.disabled", false)

	// Browser defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_instances", 2)
	v.SetDefault("browser.idle_timeout", "5m")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.download_timeout", "2m")

	// Upload defaults
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.client_id", "")
	v.SetDefault("sheets.client_secret", "")
	v.SetDefault("sheets.refresh_token", "")
	v.SetDefault("output.dir", "./output")
	v.SetDefault("api.max_upload_bytes", 32<<20)

	// Admin defaults
	v.SetDefault("admin.auth_disabled", false)
	v.SetDefault("admin.api_key", "")
}

// setupServerEnvBinding sets up environment variable binding for server configuration
func setupServerEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix("REPORTS")
	v.AutomaticEnv()

	envBindings := map[string]string{
		"server.port":              "SERVER_PORT",
		"server.host":              "SERVER_HOST",
		"database.path":            "DATABASE_PATH",
		"logging.level":            "LOGGING_LEVEL",
		"profiles.file":            "PROFILES_FILE",
		"sync.enabled":             "SYNC_ENABLED",
		"sync.interval":            "SYNC_INTERVAL",
		"sync.initial_delay":       "SYNC_INITIAL_DELAY",
		"sync.run_timeout":         "SYNC_RUN_TIMEOUT",
		"sync.min_run_interval":    "SYNC_MIN_RUN_INTERVAL",
		"rate_limit.disabled":      "RATE_LIMIT_DISABLED",
		"browser.headless":         "BROWSER_HEADLESS",
		"browser.max_instances":    "BROWSER_MAX_INSTANCES",
		"browser.idle_timeout":     "BROWSER_IDLE_TIMEOUT",
		"browser.user_agent":       "BROWSER_USER_AGENT",
		"browser.download_timeout": "BROWSER_DOWNLOAD_TIMEOUT",
		"sheets.spreadsheet_id":    "SHEETS_SPREADSHEET_ID",
		"sheets.credentials_file":  "SHEETS_CREDENTIALS_FILE",
		"sheets.client_id":         "SHEETS_CLIENT_ID",
		"sheets.client_secret":     "SHEETS_CLIENT_SECRET",
		"sheets.refresh_token":     "SHEETS_REFRESH_TOKEN",
		"output.dir":               "OUTPUT_DIR",
		"api.max_upload_bytes":     "API_MAX_UPLOAD_BYTES",
		"admin.api_key":            "ADMIN_API_KEY",
		"admin.auth_disabled":      "ADMIN_AUTH_DISABLED",
	}

	for configKey, envSuffix := range envBindings {
		v.BindEnv(configKey, "REPORTS_"+envSuffix)
	}

	// Unprefixed names kept for deployments that share env files with other tools
	legacyBindings := map[string]string{
		"server.port":             "SERVER_PORT",
		"server.host":             "SERVER_HOST",
		"database.path":           "DB_PATH",
		"logging.level":           "LOG_LEVEL",
		"rate_limit.disabled":     "DISABLE_RATE_LIMIT",
		"sheets.credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
		"admin.auth_disabled":     "DISABLE_ADMIN_AUTH",
	}

	for configKey, envVar := range legacyBindings {
		v.BindEnv(configKey, "REPORTS_"+envBindings[configKey], envVar)
	}
}

// loadConfigFile loads configuration file if it exists
func loadConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.carrier-reports")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

// unmarshalServerConfig unmarshals Viper configuration into Config struct
func unmarshalServerConfig(v *viper.Viper, config *Config) error {
	config.ServerPort = v.GetString("server.port")
	config.ServerHost = v.GetString("server.host")
	config.DBPath = v.GetString("database.path")
	config.LogLevel = v.GetString("logging.level")
	config.ProfilesFile = v.GetString("profiles.file")

	durations := map[string]*time.Duration{
		"sync.interval":            &config.SyncInterval,
		"sync.initial_delay":       &config.SyncInitialDelay,
		"sync.run_timeout":         &config.RunTimeout,
		"sync.min_run_interval":    &config.MinRunInterval,
		"browser.idle_timeout":     &config.BrowserIdleTimeout,
		"browser.download_timeout": &config.DownloadTimeout,
	}
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	config.SyncEnabled = v.GetBool("sync.enabled")
	config.DisableRateLimit = v.GetBool("rate_limit.disabled")

	config.BrowserHeadless = v.GetBool("browser.headless")
	config.BrowserMaxInstances = v.GetInt("browser.max_instances")
	config.BrowserUserAgent = v.GetString("browser.user_agent")

	config.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	config.SheetsCredentialsFile = v.GetString("sheets.credentials_file")
	config.SheetsClientID = v.GetString("sheets.client_id")
	config.SheetsClientSecret = v.GetString("sheets.client_secret")
	config.SheetsRefreshToken = v.GetString("sheets.refresh_token")
	config.OutputDir = v.GetString("output.dir")
	config.MaxUploadBytes = v.GetInt64("api.max_upload_bytes")

	config.AdminAPIKey = v.GetString("admin.api_key")
	config.DisableAdminAuth = v.GetBool("admin.auth_disabled")

	config.Credentials = map[string]Credential{}
	if err := v.UnmarshalKey("credentials", &config.Credentials); err != nil {
		return fmt.Errorf("invalid credentials section: %w", err)
	}

	return nil
}

// LoadServerConfig loads server configuration using a fresh Viper instance
func LoadServerConfig() (*Config, error) {
	return LoadServerConfigWithViper(viper.New())
}

// LoadServerConfigWithFile loads server configuration from a specific file
func LoadServerConfigWithFile(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadServerConfigWithViper(v)
}

// LoadServerConfigWithEnvFile loads server configuration with .env file support
func LoadServerConfigWithEnvFile(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return LoadServerConfig()
}

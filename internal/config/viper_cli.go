package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"carrier-reports/internal/cli"
)

// LoadCLIConfigWithViper loads CLI configuration using Viper
func LoadCLIConfigWithViper(v *viper.Viper) (*cli.Config, error) {
	setCLIDefaults(v)
	setupCLIEnvBinding(v)

	if err := loadCLIConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &cli.Config{}
	if err := unmarshalCLIConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setCLIDefaults sets default values for CLI configuration
func setCLIDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("format", "table")
	v.SetDefault("quiet", false)
	v.SetDefault("no_color", false)
	v.SetDefault("api_key", "")
	v.SetDefault("profiles_file", "")
	// portal runs take minutes; the CLI polls rather than blocking on one request
	v.SetDefault("request_timeout", "30s")
}

// setupCLIEnvBinding sets up environment variable binding for CLI configuration
func setupCLIEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix("REPORTS")
	v.AutomaticEnv()

	envBindings := map[string]string{
		"server_url":      "CLI_SERVER_URL",
		"format":          "CLI_FORMAT",
		"quiet":           "CLI_QUIET",
		"no_color":        "CLI_NO_COLOR",
		"request_timeout": "CLI_TIMEOUT",
		"api_key":         "ADMIN_API_KEY",
		"profiles_file":   "PROFILES_FILE",
	}

	for configKey, envSuffix := range envBindings {
		v.BindEnv(configKey, "REPORTS_"+envSuffix)
	}

	// NO_COLOR is a cross-tool convention
	v.BindEnv("no_color", "REPORTS_CLI_NO_COLOR", "NO_COLOR")
}

// loadCLIConfigFile loads configuration file if it exists
func loadCLIConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.carrier-reports")
		v.SetConfigName("cli")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

// unmarshalCLIConfig unmarshals Viper configuration into CLI Config struct
func unmarshalCLIConfig(v *viper.Viper, config *cli.Config) error {
	config.ServerURL = strings.TrimRight(v.GetString("server_url"), "/")
	config.Format = v.GetString("format")
	config.Quiet = v.GetBool("quiet")
	config.NoColor = v.GetBool("no_color")
	config.APIKey = v.GetString("api_key")
	config.ProfilesFile = v.GetString("profiles_file")

	timeoutStr := v.GetString("request_timeout")
	if duration, err := time.ParseDuration(timeoutStr); err == nil {
		config.RequestTimeout = duration
		return nil
	}
	// bare integers are seconds
	seconds, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return fmt.Errorf("invalid request timeout: %s", timeoutStr)
	}
	if seconds <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d seconds", seconds)
	}
	config.RequestTimeout = time.Duration(seconds) * time.Second
	return nil
}

// LoadCLIConfig loads CLI configuration using a fresh Viper instance
func LoadCLIConfig() (*cli.Config, error) {
	return LoadCLIConfigWithViper(viper.New())
}

// LoadCLIConfigWithFile loads CLI configuration from a specific file
func LoadCLIConfigWithFile(configFile string) (*cli.Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadCLIConfigWithViper(v)
}

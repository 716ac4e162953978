package cli

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServerURL != "http://localhost:8080" {
		t.Errorf("Expected default server URL to be 'http://localhost:8080', got '%s'", config.ServerURL)
	}
	if config.Format != "table" {
		t.Errorf("Expected default format to be 'table', got '%s'", config.Format)
	}
	if config.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default timeout to be 30s, got %v", config.RequestTimeout)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"json format", func(c *Config) { c.Format = "json" }, false},
		{"https server", func(c *Config) { c.ServerURL = "https://reports.example.com" }, false},
		{"empty server", func(c *Config) { c.ServerURL = "  " }, true},
		{"missing scheme", func(c *Config) { c.ServerURL = "localhost:8080" }, true},
		{"bad format", func(c *Config) { c.Format = "yaml" }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			err := config.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

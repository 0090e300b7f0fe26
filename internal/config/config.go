// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// DefaultTimeout is the default timeout for backend calls
	DefaultTimeout = 30 * time.Second

	// DefaultPromptBudget is the maximum compiled prompt length in characters
	DefaultPromptBudget = 200000
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Backend   BackendConfig
	Prompt    PromptConfig
	Store     StoreConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Name    string
	Version string
	Address string
	Port    int
	// APIKey, when non-empty, is required as a Bearer token on /v1 routes
	APIKey string
	// StreamDelay is the pause between simulated streaming chunks
	StreamDelay time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level    string
	FilePath string
}

// BackendConfig holds outbound LLM backend settings
type BackendConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	DefaultProvider string
	Providers       []ProviderConfig
}

// ProviderConfig describes a single LLM backend endpoint
type ProviderConfig struct {
	Name    string            `json:"-"`
	Kind    string            `json:"kind,omitempty"` // "openai" (default) or "anthropic"
	BaseURL string            `json:"base_url"`
	APIKey  string            `json:"api_key,omitempty"`
	Models  []string          `json:"models,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// PromptConfig holds prompt compilation settings
type PromptConfig struct {
	// Budget is the maximum compiled prompt length in characters
	Budget int
}

// StoreConfig holds usage accounting store settings
type StoreConfig struct {
	Enabled bool
	DBPath  string
}

// RetentionConfig holds usage row retention settings
type RetentionConfig struct {
	// Schedule is a cron expression for the prune job
	Schedule string
	// MaxAge is how long usage rows are kept
	MaxAge time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Config{
		Server: ServerConfig{
			Name:        "canctool",
			Version:     "1.0.0",
			Address:     "0.0.0.0",
			Port:        8001,
			StreamDelay: 30 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backend: BackendConfig{
			Timeout:    DefaultTimeout,
			MaxRetries: 3,
		},
		Prompt: PromptConfig{
			Budget: DefaultPromptBudget,
		},
		Store: StoreConfig{
			Enabled: true,
			DBPath:  filepath.Join(homeDir, ".canctool", "usage.db"),
		},
		Retention: RetentionConfig{
			Schedule: "0 3 * * *",
			MaxAge:   30 * 24 * time.Hour,
		},
	}
}

// FromEnv overrides configuration values from environment variables
func FromEnv(cfg *Config) {
	if v := os.Getenv("CANCTOOL_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CANCTOOL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SERVICE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("STREAM_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.Server.StreamDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.FilePath = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Backend.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Backend.MaxRetries = n
		}
	}
	if v := os.Getenv("PROMPT_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Prompt.Budget = n
		}
	}
	if v := os.Getenv("USAGE_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("USAGE_STORE_DISABLED"); v == "true" || v == "1" {
		cfg.Store.Enabled = false
	}
	if v := os.Getenv("USAGE_PRUNE_SCHEDULE"); v != "" {
		cfg.Retention.Schedule = v
	}
	if v := os.Getenv("USAGE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Retention.MaxAge = time.Duration(days) * 24 * time.Hour
		}
	}

	loadProvidersFromEnv(cfg)
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be greater than 0")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend max retries cannot be negative")
	}
	if c.Prompt.Budget <= 0 {
		return fmt.Errorf("prompt budget must be greater than 0")
	}
	if len(c.Backend.Providers) == 0 {
		return fmt.Errorf("at least one LLM provider must be configured")
	}
	for _, p := range c.Backend.Providers {
		if p.BaseURL == "" && p.Kind != "anthropic" {
			return fmt.Errorf("provider %s: base_url cannot be empty", p.Name)
		}
		switch p.Kind {
		case "", "openai", "anthropic":
		default:
			return fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}
	if c.Backend.DefaultProvider != "" {
		found := false
		for _, p := range c.Backend.Providers {
			if p.Name == c.Backend.DefaultProvider {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("default provider %s is not configured", c.Backend.DefaultProvider)
		}
	}
	return nil
}

// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != 8001 {
		t.Errorf("Expected default port 8001, got %d", cfg.Server.Port)
	}
	if cfg.Server.Address != "0.0.0.0" {
		t.Errorf("Expected default address 0.0.0.0, got %s", cfg.Server.Address)
	}
	if cfg.Backend.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout %v, got %v", DefaultTimeout, cfg.Backend.Timeout)
	}
	if cfg.Prompt.Budget != DefaultPromptBudget {
		t.Errorf("Expected default prompt budget %d, got %d", DefaultPromptBudget, cfg.Prompt.Budget)
	}
	if !cfg.Store.Enabled {
		t.Error("Expected usage store enabled by default")
	}
	if cfg.Retention.MaxAge != 30*24*time.Hour {
		t.Errorf("Expected 30 day retention, got %v", cfg.Retention.MaxAge)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CANCTOOL_PORT", "9090")
	t.Setenv("SERVICE_API_KEY", "secret")
	t.Setenv("STREAM_DELAY_MS", "5")
	t.Setenv("REQUEST_TIMEOUT", "60")
	t.Setenv("PROMPT_BUDGET", "1000")
	t.Setenv("USAGE_STORE_DISABLED", "true")
	t.Setenv("USAGE_RETENTION_DAYS", "7")
	t.Setenv("LLM_PROVIDERS_CONFIG", `{"providers":{"local":{"base_url":"http://localhost:8000/v1","models":["m1"]}}}`)

	cfg := DefaultConfig()
	FromEnv(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "secret" {
		t.Errorf("Expected api key from env, got %q", cfg.Server.APIKey)
	}
	if cfg.Server.StreamDelay != 5*time.Millisecond {
		t.Errorf("Expected 5ms stream delay, got %v", cfg.Server.StreamDelay)
	}
	if cfg.Backend.Timeout != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", cfg.Backend.Timeout)
	}
	if cfg.Prompt.Budget != 1000 {
		t.Errorf("Expected prompt budget 1000, got %d", cfg.Prompt.Budget)
	}
	if cfg.Store.Enabled {
		t.Error("Expected usage store disabled")
	}
	if cfg.Retention.MaxAge != 7*24*time.Hour {
		t.Errorf("Expected 7 day retention, got %v", cfg.Retention.MaxAge)
	}
	if len(cfg.Backend.Providers) != 1 || cfg.Backend.Providers[0].Name != "local" {
		t.Fatalf("Expected one provider named local, got %+v", cfg.Backend.Providers)
	}
}

func TestFromEnvInvalidValuesIgnored(t *testing.T) {
	t.Setenv("CANCTOOL_PORT", "not-a-number")
	t.Setenv("REQUEST_TIMEOUT", "-3")
	t.Setenv("PROMPT_BUDGET", "0")

	cfg := DefaultConfig()
	FromEnv(cfg)

	if cfg.Server.Port != 8001 {
		t.Errorf("Expected default port kept, got %d", cfg.Server.Port)
	}
	if cfg.Backend.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout kept, got %v", cfg.Backend.Timeout)
	}
	if cfg.Prompt.Budget != DefaultPromptBudget {
		t.Errorf("Expected default budget kept, got %d", cfg.Prompt.Budget)
	}
}

func TestApplyProvidersJSON(t *testing.T) {
	cfg := DefaultConfig()
	raw := `{
		"default_provider": "claude",
		"providers": {
			"local": {"base_url": "http://localhost:8000/v1/", "models": ["qwen2.5"]},
			"claude": {"kind": "anthropic", "api_key": "sk-test", "models": ["claude-3-5-haiku"]}
		}
	}`
	if err := applyProvidersJSON(cfg, []byte(raw)); err != nil {
		t.Fatalf("Failed to apply providers JSON: %v", err)
	}

	if len(cfg.Backend.Providers) != 2 {
		t.Fatalf("Expected two providers, got %d", len(cfg.Backend.Providers))
	}
	// Providers are ordered by name for determinism.
	if cfg.Backend.Providers[0].Name != "claude" || cfg.Backend.Providers[1].Name != "local" {
		t.Errorf("Expected sorted provider names, got %s, %s", cfg.Backend.Providers[0].Name, cfg.Backend.Providers[1].Name)
	}
	if cfg.Backend.DefaultProvider != "claude" {
		t.Errorf("Expected default provider claude, got %s", cfg.Backend.DefaultProvider)
	}

	var local ProviderConfig
	for _, p := range cfg.Backend.Providers {
		if p.Name == "local" {
			local = p
		}
	}
	if local.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("Expected trailing slash trimmed, got %q", local.BaseURL)
	}
}

func TestApplyProvidersJSONUnknownDefault(t *testing.T) {
	cfg := DefaultConfig()
	raw := `{"default_provider": "missing", "providers": {"local": {"base_url": "http://x", "models": ["m"]}}}`
	if err := applyProvidersJSON(cfg, []byte(raw)); err != nil {
		t.Fatalf("Failed to apply providers JSON: %v", err)
	}
	if cfg.Backend.DefaultProvider != "local" {
		t.Errorf("Expected fallback to first provider, got %s", cfg.Backend.DefaultProvider)
	}
}

func TestApplyProvidersJSONEmpty(t *testing.T) {
	cfg := DefaultConfig()
	if err := applyProvidersJSON(cfg, []byte(`{"providers": {}}`)); err == nil {
		t.Fatal("Expected an error for empty providers")
	}
}

func TestLoadProvidersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	raw := `{"providers": {"local": {"base_url": "http://localhost:8000", "models": ["m1", "m2"]}}}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("Failed to write providers file: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadProvidersFile(cfg, path); err != nil {
		t.Fatalf("Failed to load providers file: %v", err)
	}
	if len(cfg.Backend.Providers) != 1 {
		t.Fatalf("Expected one provider, got %d", len(cfg.Backend.Providers))
	}
	if len(cfg.Backend.Providers[0].Models) != 2 {
		t.Errorf("Expected two models, got %v", cfg.Backend.Providers[0].Models)
	}
}

func TestLoadProvidersFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadProvidersFile(cfg, filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}

func TestLegacyProviderFallback(t *testing.T) {
	t.Setenv("LLM_PROVIDERS_CONFIG", "")
	t.Setenv("LLM_PROVIDERS_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.json"))
	t.Setenv("LLM_API_BASE_URL", "http://legacy:8000/")
	t.Setenv("LLM_API_KEY", "legacy-key")
	t.Setenv("DEFAULT_MODEL_NAME", "legacy-model")

	cfg := DefaultConfig()
	FromEnv(cfg)

	if len(cfg.Backend.Providers) != 1 {
		t.Fatalf("Expected one legacy provider, got %d", len(cfg.Backend.Providers))
	}
	p := cfg.Backend.Providers[0]
	if p.Name != "default" {
		t.Errorf("Expected legacy provider named default, got %q", p.Name)
	}
	if p.BaseURL != "http://legacy:8000" {
		t.Errorf("Expected trailing slash trimmed, got %q", p.BaseURL)
	}
	if p.APIKey != "legacy-key" {
		t.Errorf("Expected legacy api key, got %q", p.APIKey)
	}
	if len(p.Models) != 1 || p.Models[0] != "legacy-model" {
		t.Errorf("Expected legacy model, got %v", p.Models)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Backend.Providers = []ProviderConfig{{Name: "local", BaseURL: "http://x", Models: []string{"m"}}}
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	cfg := valid()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for port 0")
	}

	cfg = valid()
	cfg.Backend.Providers = nil
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for no providers")
	}

	cfg = valid()
	cfg.Backend.Providers[0].BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty base_url on an openai provider")
	}

	cfg = valid()
	cfg.Backend.Providers[0].Kind = "anthropic"
	cfg.Backend.Providers[0].BaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected anthropic provider without base_url to be valid, got %v", err)
	}

	cfg = valid()
	cfg.Backend.Providers[0].Kind = "grpc"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown provider kind")
	}

	cfg = valid()
	cfg.Backend.DefaultProvider = "ghost"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unconfigured default provider")
	}
}

func TestSummaryMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.APIKey = "service-secret"
	cfg.Backend.Providers = []ProviderConfig{
		{
			Name:    "local",
			BaseURL: "http://localhost:8000",
			APIKey:  "sk-secret",
			Models:  []string{"m1"},
			Headers: map[string]string{
				"X-Api-Key":  "header-secret",
				"X-Trace-Id": "trace-1",
			},
		},
	}

	summary := cfg.Summary()
	if summary["service_api_key"] != "***" {
		t.Errorf("Expected masked service key, got %v", summary["service_api_key"])
	}

	providers := summary["providers"].(map[string]interface{})
	local := providers["local"].(map[string]interface{})
	if local["api_key"] != "***" {
		t.Errorf("Expected masked provider key, got %v", local["api_key"])
	}
	headers := local["headers"].(map[string]string)
	if headers["X-Api-Key"] != "***" {
		t.Errorf("Expected masked header secret, got %q", headers["X-Api-Key"])
	}
	if headers["X-Trace-Id"] != "trace-1" {
		t.Errorf("Expected non-secret header kept, got %q", headers["X-Trace-Id"])
	}
}

func TestSummaryEmptySecretIsNil(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.Providers = []ProviderConfig{{Name: "local", BaseURL: "http://x", Models: []string{"m"}}}
	summary := cfg.Summary()
	if summary["service_api_key"] != nil {
		t.Errorf("Expected nil for unset service key, got %v", summary["service_api_key"])
	}
}

// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// providersFile is the on-disk / env JSON shape for provider configuration:
//
//	{
//	  "default_provider": "local",
//	  "providers": {
//	    "local": {"base_url": "http://localhost:8000/v1", "models": ["qwen2.5"]},
//	    "claude": {"kind": "anthropic", "api_key": "sk-...", "models": ["claude-3-5-haiku"]}
//	  }
//	}
type providersFile struct {
	DefaultProvider string                    `json:"default_provider"`
	Providers       map[string]ProviderConfig `json:"providers"`
}

// loadProvidersFromEnv populates cfg.Backend providers from, in order of
// preference: the LLM_PROVIDERS_CONFIG env var (inline JSON), the file named
// by LLM_PROVIDERS_CONFIG_FILE (default providers_config.json), or the legacy
// single-provider env vars.
func loadProvidersFromEnv(cfg *Config) {
	if raw := os.Getenv("LLM_PROVIDERS_CONFIG"); raw != "" {
		if err := applyProvidersJSON(cfg, []byte(raw)); err == nil {
			return
		}
	}

	path := os.Getenv("LLM_PROVIDERS_CONFIG_FILE")
	if path == "" {
		path = "providers_config.json"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := applyProvidersJSON(cfg, data); err == nil {
			return
		}
	}

	loadLegacyProvider(cfg)
}

// LoadProvidersFile loads provider configuration from the JSON file at path.
func LoadProvidersFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read providers file %s: %w", path, err)
	}
	if err := applyProvidersJSON(cfg, data); err != nil {
		return fmt.Errorf("parse providers file %s: %w", path, err)
	}
	return nil
}

func applyProvidersJSON(cfg *Config, data []byte) error {
	var pf providersFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return err
	}
	if len(pf.Providers) == 0 {
		return fmt.Errorf("no providers defined")
	}

	names := make([]string, 0, len(pf.Providers))
	for name := range pf.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	providers := make([]ProviderConfig, 0, len(names))
	for _, name := range names {
		p := pf.Providers[name]
		p.Name = name
		p.BaseURL = strings.TrimSuffix(p.BaseURL, "/")
		providers = append(providers, p)
	}

	cfg.Backend.Providers = providers
	if pf.DefaultProvider != "" {
		if _, ok := pf.Providers[pf.DefaultProvider]; ok {
			cfg.Backend.DefaultProvider = pf.DefaultProvider
		}
	}
	if cfg.Backend.DefaultProvider == "" {
		cfg.Backend.DefaultProvider = names[0]
	}
	return nil
}

// loadLegacyProvider builds a single default provider from the legacy env
// vars, kept for backward compatibility with old deployments.
func loadLegacyProvider(cfg *Config) {
	if len(cfg.Backend.Providers) > 0 {
		return
	}

	baseURL := os.Getenv("LLM_API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	model := os.Getenv("DEFAULT_MODEL_NAME")
	if model == "" {
		model = "default"
	}

	cfg.Backend.Providers = []ProviderConfig{
		{
			Name:    "default",
			BaseURL: strings.TrimSuffix(baseURL, "/"),
			APIKey:  os.Getenv("LLM_API_KEY"),
			Models:  []string{model},
		},
	}
	cfg.Backend.DefaultProvider = "default"
}

// Summary returns a redacted view of the configuration for diagnostics.
// API keys and secret-looking header values are masked.
func (c *Config) Summary() map[string]interface{} {
	providers := make(map[string]interface{}, len(c.Backend.Providers))
	models := make([]string, 0)
	for _, p := range c.Backend.Providers {
		providers[p.Name] = map[string]interface{}{
			"kind":     providerKind(p),
			"base_url": p.BaseURL,
			"api_key":  maskSecret(p.APIKey),
			"models":   p.Models,
			"headers":  maskHeaders(p.Headers),
		}
		models = append(models, p.Models...)
	}

	return map[string]interface{}{
		"service_api_key":  maskSecret(c.Server.APIKey),
		"request_timeout":  c.Backend.Timeout.String(),
		"max_retries":      c.Backend.MaxRetries,
		"log_level":        c.Logging.Level,
		"prompt_budget":    c.Prompt.Budget,
		"default_provider": c.Backend.DefaultProvider,
		"providers":        providers,
		"total_models":     len(models),
		"available_models": models,
	}
}

func providerKind(p ProviderConfig) string {
	if p.Kind == "" {
		return "openai"
	}
	return p.Kind
}

func maskSecret(s string) interface{} {
	if s == "" {
		return nil
	}
	return "***"
}

func maskHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "key") || strings.Contains(lower, "token") || strings.Contains(lower, "authorization") {
			out[k] = "***"
		} else {
			out[k] = v
		}
	}
	return out
}

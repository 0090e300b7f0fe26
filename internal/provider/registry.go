// SPDX-License-Identifier: AGPL-3.0-only
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/sligter/canctool/internal/config"
	"github.com/sligter/canctool/internal/logging"
)

// Caller is the narrow contract the pipeline consumes: one blocking call
// that turns a compiled prompt into backend free text. Retry and timeout
// policy live behind this boundary, not in the pipeline.
type Caller interface {
	Call(ctx context.Context, model string, prompt string) (string, error)
}

// Provider pairs a configured backend identity with its caller
type Provider struct {
	Name   string
	Kind   string
	Models []string
	caller Caller
}

// Call forwards to the provider's backend caller
func (p *Provider) Call(ctx context.Context, model string, prompt string) (string, error) {
	return p.caller.Call(ctx, model, prompt)
}

// Registry is the model-to-provider routing table. It is built once at
// startup and read-only afterwards; requests share it without locking.
type Registry struct {
	providers   map[string]*Provider
	modelIndex  map[string]string
	defaultName string
}

// NewRegistry builds the routing table from the backend configuration
func NewRegistry(cfg *config.BackendConfig, logger *logging.Logger) (*Registry, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	r := &Registry{
		providers:   make(map[string]*Provider, len(cfg.Providers)),
		modelIndex:  make(map[string]string),
		defaultName: cfg.DefaultProvider,
	}

	for _, pc := range cfg.Providers {
		caller, err := newCaller(pc, cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		r.providers[pc.Name] = &Provider{
			Name:   pc.Name,
			Kind:   kindOf(pc),
			Models: pc.Models,
			caller: caller,
		}
		for _, model := range pc.Models {
			r.modelIndex[model] = pc.Name
		}
		if logger != nil {
			logger.Infof("Initialized provider %s (%s) serving %d models", pc.Name, kindOf(pc), len(pc.Models))
		}
	}

	if r.defaultName == "" {
		r.defaultName = cfg.Providers[0].Name
	}
	if _, ok := r.providers[r.defaultName]; !ok {
		return nil, fmt.Errorf("default provider %s is not configured", r.defaultName)
	}
	return r, nil
}

// newCaller builds the appropriate backend caller for a provider config
func newCaller(pc config.ProviderConfig, cfg *config.BackendConfig) (Caller, error) {
	switch kindOf(pc) {
	case "anthropic":
		if pc.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api_key")
		}
		return NewAnthropicCaller(pc), nil
	case "openai":
		return NewOpenAICaller(pc, cfg.Timeout, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

// NewProvider pairs a backend identity with a caller
func NewProvider(name, kind string, models []string, caller Caller) *Provider {
	return &Provider{Name: name, Kind: kind, Models: models, caller: caller}
}

// NewStaticRegistry builds a routing table directly from pre-built providers,
// bypassing configuration. The first provider is the default.
func NewStaticRegistry(providers ...*Provider) *Registry {
	r := &Registry{
		providers:  make(map[string]*Provider, len(providers)),
		modelIndex: make(map[string]string),
	}
	for i, p := range providers {
		if i == 0 {
			r.defaultName = p.Name
		}
		r.providers[p.Name] = p
		for _, model := range p.Models {
			r.modelIndex[model] = p.Name
		}
	}
	return r
}

// Resolve returns the provider serving the given model, falling back to the
// default provider for unmapped models.
func (r *Registry) Resolve(model string) *Provider {
	if name, ok := r.modelIndex[model]; ok {
		return r.providers[name]
	}
	return r.providers[r.defaultName]
}

// Models returns the sorted list of all models the registry serves
func (r *Registry) Models() []string {
	models := make([]string, 0, len(r.modelIndex))
	for model := range r.modelIndex {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

func kindOf(pc config.ProviderConfig) string {
	if pc.Kind == "" {
		return "openai"
	}
	return pc.Kind
}

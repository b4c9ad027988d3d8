package llm

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ModelConfig describes one registered model endpoint. The registry is an
// explicitly constructed value passed by reference; there is no ambient
// global model state.
type ModelConfig struct {
	ID           string
	Name         string
	Kind         string // "openai" (any compatible endpoint) or "gemini"
	BaseURL      string
	APIKey       string
	MaxTokens    int
	ContextLimit int
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
}

type registered struct {
	cfg      ModelConfig
	provider Provider
	stats    *Stats
}

// Registry holds the configured models, their providers, and per-model
// process-level call statistics.
type Registry struct {
	models    map[string]*registered
	defaultID string
}

// NewRegistry builds providers for each config. The first config becomes the
// default model.
func NewRegistry(ctx context.Context, configs []ModelConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	r := &Registry{models: make(map[string]*registered)}
	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, fmt.Errorf("model config without id")
		}
		if cfg.MaxRetries <= 0 {
			cfg.MaxRetries = 3
		}
		var p Provider
		var err error
		switch cfg.Kind {
		case "gemini":
			p, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Name)
		case "openai", "":
			p = NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Name, cfg.MaxTokens, cfg.Temperature, cfg.Timeout)
		default:
			err = fmt.Errorf("unknown provider kind %q", cfg.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", cfg.ID, err)
		}
		r.models[cfg.ID] = &registered{cfg: cfg, provider: p, stats: NewStats(time.Hour)}
		if r.defaultID == "" {
			r.defaultID = cfg.ID
		}
	}
	return r, nil
}

// NewStaticRegistry builds a registry from pre-constructed providers,
// bypassing endpoint construction. The first config becomes the default.
func NewStaticRegistry(configs []ModelConfig, providers map[string]Provider) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	r := &Registry{models: make(map[string]*registered)}
	for _, cfg := range configs {
		p, ok := providers[cfg.ID]
		if !ok {
			return nil, fmt.Errorf("no provider for model %q", cfg.ID)
		}
		if cfg.MaxRetries <= 0 {
			cfg.MaxRetries = 3
		}
		r.models[cfg.ID] = &registered{cfg: cfg, provider: p, stats: NewStats(time.Hour)}
		if r.defaultID == "" {
			r.defaultID = cfg.ID
		}
	}
	return r, nil
}

// DefaultID returns the id of the default model.
func (r *Registry) DefaultID() string { return r.defaultID }

// Config returns the configuration for a model id.
func (r *Registry) Config(id string) (ModelConfig, error) {
	m, ok := r.models[id]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown model %q", id)
	}
	return m.cfg, nil
}

// Provider returns the provider for a model id.
func (r *Registry) Provider(id string) (Provider, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", id)
	}
	return m.provider, nil
}

// Stats returns the process-level stats counter for a model id. Callers that
// invoke the provider directly record their attempts here so the per-model
// numbers stay complete.
func (r *Registry) Stats(id string) (*Stats, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", id)
	}
	return m.stats, nil
}

// Call invokes a model with the configured timeout, retrying transient
// failures up to the configured budget with exponential backoff. Every
// attempt is recorded in the model's process-level stats.
func (r *Registry) Call(ctx context.Context, id, prompt string) (*Response, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", id)
	}

	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if m.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		}

		start := time.Now()
		resp, err := m.provider.Invoke(callCtx, prompt)
		elapsed := time.Since(start)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			m.stats.RecordSuccess(elapsed, resp.Usage)
			return resp, nil
		}
		m.stats.RecordFailure(elapsed)
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("retry budget exhausted: %w", lastErr)
}

// Caller binds Call to a model id.
func (r *Registry) Caller(id string) CallFunc {
	return func(ctx context.Context, prompt string) (*Response, error) {
		return r.Call(ctx, id, prompt)
	}
}

// StatsSnapshots returns per-model snapshots keyed by model id, in stable
// id order for JSON output.
func (r *Registry) StatsSnapshots() map[string]StatsSnapshot {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]StatsSnapshot, len(ids))
	for _, id := range ids {
		out[id] = r.models[id].stats.Snapshot()
	}
	return out
}

// Close releases provider resources.
func (r *Registry) Close() {
	for _, m := range r.models {
		if c, ok := m.provider.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// Package llm provides the text-generation backends used by the dialogue
// roles: any OpenAI-compatible server, Ollama, Gemini and Anthropic.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Request is one text-generation call.
type Request struct {
	System string
	Prompt string
	// JSON asks the backend for a JSON object response where supported.
	JSON        bool
	Temperature float32
}

// Backend generates text with a concrete provider.
type Backend interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}

// Config holds connection settings for all providers. Only the settings of
// the providers actually opened are used.
type Config struct {
	OpenAIURL    string
	OpenAIKey    string
	OllamaURL    string
	GeminiKey    string
	AnthropicKey string
}

// Registry routes calls to backends by provider name, resolving model
// aliases through the catalog and retrying rate-limited calls.
type Registry struct {
	catalog Catalog
	retry   RetryPolicy

	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry over the given catalog.
func NewRegistry(cat Catalog, retry RetryPolicy) *Registry {
	return &Registry{
		catalog:  cat,
		retry:    retry,
		backends: make(map[string]Backend),
	}
}

// Register installs b as the backend for provider.
func (r *Registry) Register(provider string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[provider] = b
}

// Open creates the backend for provider from cfg and registers it.
func (r *Registry) Open(ctx context.Context, provider string, cfg Config) error {
	if _, err := r.catalog.Lookup(provider); err != nil {
		return err
	}
	var (
		b   Backend
		err error
	)
	switch provider {
	case ProviderOpenAI:
		b = NewOpenAI(cfg.OpenAIURL, cfg.OpenAIKey)
	case ProviderOllama:
		b = NewOllama(cfg.OllamaURL)
	case ProviderGemini:
		b, err = NewGemini(ctx, cfg.GeminiKey)
	case ProviderAnthropic:
		b, err = NewAnthropic(cfg.AnthropicKey)
	default:
		err = fmt.Errorf("no client for provider %q", provider)
	}
	if err != nil {
		return fmt.Errorf("open %s backend: %w", provider, err)
	}
	r.Register(provider, b)
	return nil
}

// Validate checks that provider is registered and model is known to it.
func (r *Registry) Validate(provider, model string) error {
	if _, err := r.catalog.Resolve(provider, model); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.backends[provider]; !ok {
		return fmt.Errorf("provider %q is not open", provider)
	}
	return nil
}

// Generate runs req on the backend for provider with the resolved model.
func (r *Registry) Generate(ctx context.Context, provider, model string, req Request) (string, error) {
	resolved, err := r.catalog.Resolve(provider, model)
	if err != nil {
		return "", err
	}
	r.mu.RLock()
	b, ok := r.backends[provider]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("provider %q is not open", provider)
	}

	var out string
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		var genErr error
		out, genErr = b.Generate(ctx, resolved, req)
		return genErr
	})
	if err != nil {
		return "", err
	}
	slog.Debug("llm response", "provider", provider, "model", resolved, "chars", len(out))
	return out, nil
}

// Pinger is implemented by backends that can check their endpoint without
// generating text.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the endpoint of provider when its backend supports it.
func (r *Registry) Ping(ctx context.Context, provider string) error {
	r.mu.RLock()
	b, ok := r.backends[provider]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("provider %q is not open", provider)
	}
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases backends that hold connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, b := range r.backends {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

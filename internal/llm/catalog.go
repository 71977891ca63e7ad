package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// ProviderInfo describes the models a provider accepts.
type ProviderInfo struct {
	Name         string
	DefaultModel string
	// Models maps accepted names, including aliases, to the model sent to
	// the backend.
	Models map[string]string
	// AnyModel accepts names outside Models unchanged. OpenAI-compatible
	// servers host arbitrary models.
	AnyModel bool
}

// Catalog is the set of known providers.
type Catalog map[string]ProviderInfo

// CatalogError reports a provider or model the catalog does not know.
type CatalogError struct {
	Provider string
	Model    string
	Known    []string
}

func (e *CatalogError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("unknown provider %q (available: %s)", e.Provider, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("model %q not available for %s (available: %s)", e.Model, e.Provider, strings.Join(e.Known, ", "))
}

// DefaultCatalog lists the supported providers.
func DefaultCatalog() Catalog {
	return Catalog{
		ProviderGemini: {
			Name:         ProviderGemini,
			DefaultModel: "gemini-2.0-flash",
			Models: map[string]string{
				"gemini-2.0-flash": "gemini-2.0-flash",
				"gemini-2.0-pro":   "gemini-2.0-pro",
				"gemini-2.5-flash": "gemini-2.5-flash",
				"gemini":           "gemini-2.0-flash",
			},
		},
		ProviderOllama: {
			Name:         ProviderOllama,
			DefaultModel: "llama3",
			Models: map[string]string{
				"llama3":    "llama3",
				"llama3.1":  "llama3.1",
				"codellama": "codellama",
				"mistral":   "mistral",
			},
		},
		ProviderOpenAI: {
			Name:         ProviderOpenAI,
			DefaultModel: "gpt-4o-mini",
			Models: map[string]string{
				"gpt-4o":      "gpt-4o",
				"gpt-4o-mini": "gpt-4o-mini",
			},
			AnyModel: true,
		},
		ProviderAnthropic: {
			Name:         ProviderAnthropic,
			DefaultModel: "claude-3-5-haiku-latest",
			Models: map[string]string{
				"claude-3-5-haiku-latest":  "claude-3-5-haiku-latest",
				"claude-3-7-sonnet-latest": "claude-3-7-sonnet-latest",
				"claude-sonnet-4-20250514": "claude-sonnet-4-20250514",
				"haiku":                    "claude-3-5-haiku-latest",
				"sonnet":                   "claude-sonnet-4-20250514",
			},
		},
	}
}

// Providers returns the provider names in sorted order.
func (c Catalog) Providers() []string {
	names := lo.Keys(c)
	sort.Strings(names)
	return names
}

// Lookup returns the provider entry.
func (c Catalog) Lookup(provider string) (ProviderInfo, error) {
	p, ok := c[provider]
	if !ok {
		return ProviderInfo{}, &CatalogError{Provider: provider, Known: c.Providers()}
	}
	return p, nil
}

// Resolve maps a model name or alias to the backend model name.
func (c Catalog) Resolve(provider, model string) (string, error) {
	p, err := c.Lookup(provider)
	if err != nil {
		return "", err
	}
	if model == "" {
		return p.DefaultModel, nil
	}
	if m, ok := p.Models[model]; ok {
		return m, nil
	}
	if p.AnyModel {
		return model, nil
	}
	known := lo.Keys(p.Models)
	sort.Strings(known)
	return "", &CatalogError{Provider: provider, Model: model, Known: known}
}

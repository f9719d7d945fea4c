package llm

import (
	"fmt"
	"sort"
	"time"
)

// ProviderConfig carries everything needed to construct a provider.
type ProviderConfig struct {
	Provider   string // registered name, or "" / "none" for no provider
	APIKey     string
	Model      string
	BaseURL    string // override for self-hosted or proxied endpoints
	EmbedModel string // embedding model, OpenAI-compatible providers only

	// Retry behavior. A nonzero Timeout or MaxRetries wraps the provider
	// in retry handling.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultProviderConfig returns the retry defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// ProviderFactory maps provider names to constructors.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// NewFactory creates an empty factory. Call llmutil.RegisterDefaultProviders
// to populate it with the built-ins.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{constructors: make(map[string]ProviderConstructor)}
}

// Register adds a constructor under name, replacing any previous one.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds the configured provider. A Provider of "" or "none" yields
// (nil, nil) so callers can run LLM-free. When retry settings are present
// the provider comes back wrapped.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (registered: %v)", cfg.Provider, f.registered())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 || cfg.MaxRetries > 0 {
		provider = WrapWithRetry(provider, cfg)
	}
	return provider, nil
}

func (f *ProviderFactory) registered() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownProviders maps built-in provider names to their default base URLs.
// Everything except anthropic speaks the OpenAI wire format.
var KnownProviders = map[string]string{
	"anthropic":   "https://api.anthropic.com/v1",
	"openai":      "https://api.openai.com/v1",
	"groq":        "https://api.groq.com/openai/v1",
	"huggingface": "https://api-inference.huggingface.co/v1",
	"ollama":      "http://localhost:11434/v1",
	"together":    "https://api.together.xyz/v1",
	"deepseek":    "https://api.deepseek.com/v1",
}

// Package llmutil carries provider registration shared by the binaries.
package llmutil

import (
	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/llm/anthropic"
	"github.com/xebia/sift/internal/llm/openai"
)

// openaiCompatible lists providers served by the openai client under a
// different base URL. "custom" takes its URL from config.
var openaiCompatible = []string{"groq", "huggingface", "ollama", "together", "deepseek", "custom"}

// RegisterDefaultProviders registers every built-in provider constructor
// into factory.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})

	for _, name := range openaiCompatible {
		defaultURL := llm.KnownProviders[name]
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = defaultURL
			}
			return openai.New(c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}
}

package rag

import (
	"context"
	"fmt"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/vector"
)

// Retriever embeds a query string and ranks the corpus against it.
type Retriever struct {
	provider llm.Provider
	repo     vector.Repository
	topK     int
}

// NewRetriever creates a Retriever. defaultTopK is used when Retrieve is
// called with topK <= 0.
func NewRetriever(provider llm.Provider, repo vector.Repository, defaultTopK int) (*Retriever, error) {
	if provider == nil {
		return nil, fmt.Errorf("rag: provider must not be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("rag: repository must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &Retriever{provider: provider, repo: repo, topK: defaultTopK}, nil
}

// Retrieve embeds query and returns the topK most similar documents in
// descending score order. topK <= 0 falls back to the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]vector.SearchResult, error) {
	if topK <= 0 {
		topK = r.topK
	}

	embeddings, err := r.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("rag: expected 1 query embedding, got %d", len(embeddings))
	}

	results, err := r.repo.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	return results, nil
}

package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/observability"
)

// Embedder wraps an LLM provider to produce and store embeddings.
type Embedder struct {
	provider llm.Provider
	repo     Repository
}

// NewEmbedder creates an Embedder.
func NewEmbedder(provider llm.Provider, repo Repository) *Embedder {
	return &Embedder{provider: provider, repo: repo}
}

// IndexTexts embeds the given texts and upserts them into the vector store.
// Returns the assigned document IDs in input order.
func (e *Embedder) IndexTexts(ctx context.Context, texts []string, metadata []map[string]string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embedCtx, span := observability.StartEmbedSpan(ctx, e.provider.Name(), len(texts))
	vectors, err := e.provider.Embed(embedCtx, texts)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		return nil, fmt.Errorf("embedding: %w", err)
	}
	span.End()
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	ids := make([]string, len(texts))
	docs := make([]Document, len(texts))
	for i := range texts {
		meta := map[string]string{}
		if i < len(metadata) && metadata[i] != nil {
			meta = metadata[i]
		}
		ids[i] = uuid.NewString()
		docs[i] = Document{
			ID:       ids[i],
			Content:  texts[i],
			Vector:   vectors[i],
			Metadata: meta,
		}
	}
	if err := e.repo.Upsert(ctx, docs); err != nil {
		return nil, err
	}
	return ids, nil
}

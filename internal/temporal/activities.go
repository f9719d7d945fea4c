package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/observability"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/vector"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Provider llm.Provider
	Repo     vector.Repository
	// Splitter used when the workflow input does not override chunk sizes.
	Splitter *rag.Splitter
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// ChunkActivity splits the document text into embedding-sized chunks.
func ChunkActivity(ctx context.Context, input IngestInput) ([]string, error) {
	var splitter *rag.Splitter
	if deps != nil {
		splitter = deps.Splitter
	}
	if splitter == nil {
		splitter = rag.DefaultSplitter()
	}
	if input.ChunkSize > 0 {
		splitter = &rag.Splitter{ChunkSize: input.ChunkSize, Overlap: input.ChunkOverlap}
	}
	return splitter.Split(input.Text), nil
}

// IndexBatchInput is the serializable input for one embedding batch.
type IndexBatchInput struct {
	Source string
	Chunks []string
}

// IndexBatchActivity embeds a batch of chunks and upserts them into the
// vector store. Returns the assigned document IDs in chunk order.
func IndexBatchActivity(ctx context.Context, input IndexBatchInput) ([]string, error) {
	if deps == nil || deps.Provider == nil || deps.Repo == nil {
		return nil, fmt.Errorf("temporal: dependencies not initialized")
	}

	metadata := make([]map[string]string, len(input.Chunks))
	if input.Source != "" {
		for i := range metadata {
			metadata[i] = map[string]string{"source": input.Source}
		}
	}

	start := time.Now()
	embedder := vector.NewEmbedder(deps.Provider, deps.Repo)
	ids, err := embedder.IndexTexts(ctx, input.Chunks, metadata)
	observability.Audit().LogIngest(input.Source, len(ids), time.Since(start), err)
	return ids, err
}

// Package temporal runs document ingestion as durable Temporal workflows:
// chunking and embedding survive worker restarts and provider outages.
package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

const defaultBatchSize = 16

// IngestInput holds the workflow parameters.
type IngestInput struct {
	// Source labels the document (file path, URL). Stored in chunk metadata.
	Source string
	// Text is the raw document body.
	Text string

	// Chunking configuration (optional, zero means defaults)
	ChunkSize    int
	ChunkOverlap int
	// BatchSize bounds how many chunks each embedding activity handles.
	BatchSize int
}

// IngestOutput holds the workflow result.
type IngestOutput struct {
	ChunkCount int
	StoredIDs  []string
}

// IngestWorkflow chunks a document and indexes the chunks batch by batch.
// Each batch is its own activity so a provider failure retries only the
// failed batch.
func IngestWorkflow(ctx workflow.Context, input IngestInput) (*IngestOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Step 1: chunk the document
	var chunks []string
	if err := workflow.ExecuteActivity(ctx, ChunkActivity, input).Get(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return &IngestOutput{}, nil
	}

	// Step 2: embed and store, one activity per batch
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	output := &IngestOutput{ChunkCount: len(chunks)}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := IndexBatchInput{
			Source: input.Source,
			Chunks: chunks[start:end],
		}

		var ids []string
		if err := workflow.ExecuteActivity(ctx, IndexBatchActivity, batch).Get(ctx, &ids); err != nil {
			return nil, fmt.Errorf("index batch %d-%d: %w", start, end, err)
		}
		output.StoredIDs = append(output.StoredIDs, ids...)
	}

	return output, nil
}

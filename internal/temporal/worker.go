package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker registers the ingestion workflow and its activities on
// taskQueue and starts polling. Stop the returned worker to drain it.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(IngestWorkflow)
	w.RegisterActivity(ChunkActivity)
	w.RegisterActivity(IndexBatchActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

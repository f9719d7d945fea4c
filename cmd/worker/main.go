package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/xebia/sift/internal/config"
	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/llmutil"
	"github.com/xebia/sift/internal/observability"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/secrets"
	"github.com/xebia/sift/internal/server"
	"github.com/xebia/sift/internal/temporal"
	"github.com/xebia/sift/internal/vector"
	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// workerProbeAddr serves the worker's health probes, one port above the API.
const workerProbeAddr = ":8081"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := "configs/sift.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = &config.Config{}
	}

	logger, err := observability.NewLogger(&observability.LoggingConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)
	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = secrets.GetOrDefault(context.Background(), string(secrets.SecretLLMAPIKey), "")
	}
	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		APIKey:     apiKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		EmbedModel: cfg.LLM.EmbedModel,
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider == nil {
		return fmt.Errorf("no LLM provider configured (set llm.provider or SIFT_LLM_PROVIDER)")
	}
	provider = llm.WithRateLimit(provider, llm.DefaultRateLimitConfig())

	repo, err := openRepository(context.Background(), cfg.Vector)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}

	splitter := rag.DefaultSplitter()
	if cfg.Ingest.ChunkSize > 0 {
		splitter = &rag.Splitter{ChunkSize: cfg.Ingest.ChunkSize, Overlap: cfg.Ingest.ChunkOverlap}
	}
	temporal.SetDependencies(&temporal.Dependencies{
		Provider: provider,
		Repo:     repo,
		Splitter: splitter,
	})

	hostPort := cfg.Temporal.Host
	if hostPort == "" {
		hostPort = "localhost:7233"
	}
	namespace := cfg.Temporal.Namespace
	if namespace == "" {
		namespace = "default"
	}
	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = "sift-ingest"
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return fmt.Errorf("connecting to Temporal at %s: %w", hostPort, err)
	}
	defer c.Close()

	w, err := temporal.StartWorker(c, taskQueue)
	if err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	g := server.NewGracefulServer(nil, nil)
	g.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	g.Shutdown.Register(server.TemporalWorkerShutdownHook(w.Stop))
	g.Shutdown.Register(server.VectorStoreShutdownHook(repo.Close))
	g.Start(workerProbeAddr)

	logger.Info("ingestion worker started",
		zap.String("host", hostPort),
		zap.String("namespace", namespace),
		zap.String("task_queue", taskQueue),
		zap.String("backend", cfg.Vector.Backend),
		zap.String("provider", provider.Name()),
		zap.String("probe_addr", workerProbeAddr))

	g.Wait()
	logger.Info("worker shutdown complete")
	return nil
}

// openRepository opens the configured vector backend.
func openRepository(ctx context.Context, cfg config.VectorConfig) (vector.Repository, error) {
	switch cfg.Backend {
	case "", "memory":
		return vector.NewMemoryRepository(), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "sift.db"
		}
		return vector.OpenSQLite(path)
	case "qdrant":
		host, port := cfg.Host, cfg.Port
		if host == "" {
			host = "localhost"
		}
		if port == 0 {
			port = 6334
		}
		collection := cfg.Collection
		if collection == "" {
			collection = "sift"
		}
		apiKey := secrets.GetOrDefault(ctx, string(secrets.SecretQdrantAPIKey), "")
		return vector.NewQdrant(ctx, host, port, collection, apiKey)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

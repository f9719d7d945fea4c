package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xebia/sift/internal/agents"
	"github.com/xebia/sift/internal/agents/curator"
	"github.com/xebia/sift/internal/agents/researcher"
	"github.com/xebia/sift/internal/config"
	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/llmutil"
	"github.com/xebia/sift/internal/metrics"
	"github.com/xebia/sift/internal/observability"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/secrets"
	"github.com/xebia/sift/internal/server"
	"github.com/xebia/sift/internal/vector"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath string
		jsonReport bool
		topK       int
	)

	rootCmd := &cobra.Command{
		Use:   "sift",
		Short: "Retrieval-augmented generation toolkit",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/sift.yaml", "Config file path")

	var (
		inputPath   string
		sourceLabel string
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk and embed documents into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, inputPath, sourceLabel, jsonReport)
		},
	}
	ingestCmd.Flags().StringVar(&inputPath, "input", "", "Input path (file or directory)")
	ingestCmd.Flags().StringVar(&sourceLabel, "source", "", "Source label stored with each chunk (default: file path)")
	ingestCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the run report as JSON")
	_ = ingestCmd.MarkFlagRequired("input")

	queryCmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Retrieve the top-k passages for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(configPath, args[0], topK)
		},
	}
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "Number of passages to retrieve (default from config)")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question grounded in the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(configPath, args[0], topK, jsonReport)
		},
	}
	askCmd.Flags().IntVar(&topK, "top-k", 0, "Number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the run report as JSON")

	var (
		agentName string
		maxSteps  int
	)
	agentCmd := &cobra.Command{
		Use:   "agent [task]",
		Short: "Run an agent against the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(configPath, agentName, args[0], maxSteps, topK)
		},
	}
	agentCmd.Flags().StringVar(&agentName, "name", "researcher", "Agent to run (researcher, curator)")
	agentCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Tool budget for the researcher (0 uses the default)")
	agentCmd.Flags().IntVar(&topK, "top-k", 0, "Passages per retrieval (default from config)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in sift.yaml or via environment:")
			fmt.Println("  SIFT_LLM_PROVIDER=groq")
			fmt.Println("  SIFT_LLM_API_KEY=gsk_...")
			fmt.Println("  SIFT_LLM_MODEL=llama-3.3-70b-versatile")
			fmt.Println("  SIFT_LLM_EMBED_MODEL=text-embedding-3-small")
		},
	}

	var serveAddr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, serveAddr)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, then :8080)")

	rootCmd.AddCommand(ingestCmd, queryCmd, askCmd, agentCmd, providersCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = &config.Config{}
	}
	return cfg
}

// buildProvider creates the configured LLM provider wrapped with rate
// limiting and retries.
func buildProvider(llmCfg config.LLMConfig) (llm.Provider, error) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	if llmCfg.APIKey == "" {
		llmCfg.APIKey = secrets.GetOrDefault(context.Background(), string(secrets.SecretLLMAPIKey), "")
	}

	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   llmCfg.Provider,
		APIKey:     llmCfg.APIKey,
		Model:      llmCfg.Model,
		BaseURL:    llmCfg.BaseURL,
		EmbedModel: llmCfg.EmbedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("no LLM provider configured (set llm.provider or SIFT_LLM_PROVIDER)")
	}

	provider = llm.NewRetryProvider(provider, llm.DefaultRetryConfig())
	return llm.WithRateLimit(provider, llm.DefaultRateLimitConfig()), nil
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

func newSplitter(cfg config.IngestConfig) *rag.Splitter {
	if cfg.ChunkSize <= 0 {
		return rag.DefaultSplitter()
	}
	return &rag.Splitter{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
}

func resolveTopK(flagTopK int, cfg config.VectorConfig) int {
	if flagTopK > 0 {
		return flagTopK
	}
	if cfg.TopK > 0 {
		return cfg.TopK
	}
	return 4
}

func runIngest(configPath, inputPath, sourceLabel string, jsonReport bool) error {
	cfg := loadConfig(configPath)
	m := metrics.New()
	m.Backend = cfg.Vector.Backend
	if m.Backend == "" {
		m.Backend = "memory"
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer repo.Close()

	files, err := collectFiles(inputPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found under %s", inputPath)
	}

	splitter := newSplitter(cfg.Ingest)
	embedder := vector.NewEmbedder(provider, repo)

	var errs []string
	start := time.Now()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", file, err))
			continue
		}

		chunks := splitter.Split(string(data))
		if len(chunks) == 0 {
			continue
		}

		source := sourceLabel
		if source == "" {
			source = file
		}
		metadata := make([]map[string]string, len(chunks))
		for i := range metadata {
			metadata[i] = map[string]string{"source": source}
		}

		if _, err := embedder.IndexTexts(ctx, chunks, metadata); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		m.CollectIngest(chunks)
		if !jsonReport {
			fmt.Printf("  %s: %d chunks\n", file, len(chunks))
		}
	}
	m.AddStage("ingest", time.Since(start), len(errs))
	m.Finish(errs)

	if jsonReport {
		data, err := m.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	m.PrintSummary(os.Stdout)
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d files failed", len(errs), len(files))
	}
	return nil
}

func runQuery(configPath, query string, topK int) error {
	cfg := loadConfig(configPath)

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer repo.Close()

	retriever, err := rag.NewRetriever(provider, repo, resolveTopK(topK, cfg.Vector))
	if err != nil {
		return err
	}

	results, err := retriever.Retrieve(ctx, query, 0)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matching passages.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("[%d] score=%.4f id=%s source=%s\n", i+1, r.Score, r.ID, r.Metadata["source"])
		fmt.Printf("    %s\n", strings.TrimSpace(r.Content))
	}
	return nil
}

func runAsk(configPath, question string, topK int, jsonReport bool) error {
	cfg := loadConfig(configPath)
	m := metrics.New()
	m.Backend = cfg.Vector.Backend
	if m.Backend == "" {
		m.Backend = "memory"
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer repo.Close()

	retriever, err := rag.NewRetriever(provider, repo, resolveTopK(topK, cfg.Vector))
	if err != nil {
		return err
	}
	pipeline, err := rag.NewPipeline(retriever, provider)
	if err != nil {
		return err
	}
	pipeline.MinScore = cfg.Vector.MinScore

	start := time.Now()
	answer, err := pipeline.Ask(ctx, question, 0)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	m.AddStage("ask", time.Since(start), 0)
	topScore := 0.0
	if len(answer.Sources) > 0 {
		topScore = answer.Sources[0].Score
	}
	m.CollectRetrieval(len(answer.Sources), topScore)
	m.CollectLLM(provider.Name(), answer.Model, answer.InputTokens, answer.OutputTokens)
	m.Finish(nil)

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range answer.Sources {
			fmt.Printf("  [%d] score=%.4f %s\n", i+1, s.Score, s.Metadata["source"])
		}
	}

	if jsonReport {
		data, err := m.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	return nil
}

// newAgent builds the named agent and its parameter map.
func newAgent(name, task string, maxSteps, topK int) (agents.Agent, map[string]string, error) {
	params := map[string]string{}
	switch name {
	case "researcher":
		params["question"] = task
		if maxSteps > 0 {
			params["max_steps"] = fmt.Sprintf("%d", maxSteps)
		}
		return researcher.New(), params, nil
	case "curator":
		params["topic"] = task
		if topK > 0 {
			params["top_k"] = fmt.Sprintf("%d", topK)
		}
		return curator.New(), params, nil
	default:
		return nil, nil, fmt.Errorf("unknown agent %q (known: researcher, curator)", name)
	}
}

func runAgent(configPath, agentName, task string, maxSteps, topK int) error {
	cfg := loadConfig(configPath)

	agent, params, err := newAgent(agentName, task, maxSteps, topK)
	if err != nil {
		return err
	}

	provider, err := buildProvider(cfg.LLM.ResolveForAgent(agentName))
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer repo.Close()

	retriever, err := rag.NewRetriever(provider, repo, resolveTopK(topK, cfg.Vector))
	if err != nil {
		return err
	}

	ctx, span := observability.StartAgentSpan(ctx, agentName)
	observability.Audit().LogAgentStart(agentName, params)
	start := time.Now()
	result, err := agent.Run(ctx, &agents.AgentContext{
		LLM:       provider,
		VectorDB:  repo,
		Retriever: retriever,
		Params:    params,
	})
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		observability.Audit().LogAgentError(agentName, time.Since(start), err)
		return fmt.Errorf("%s: %w", agentName, err)
	}
	observability.SetAgentMetrics(span, len(result.Steps), len(result.Errors))
	span.End()
	observability.Metrics().RecordAgentRun(time.Since(start), len(result.Steps), nil)
	observability.Audit().LogAgentComplete(agentName, time.Since(start), len(result.Steps))

	fmt.Println(result.Output)
	if len(result.Steps) > 0 {
		fmt.Printf("\n(%d tool steps)\n", len(result.Steps))
	}
	return nil
}

func runServe(configPath, addrOverride string) error {
	cfg := loadConfig(configPath)

	logger, err := observability.NewLogger(&observability.LoggingConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	if cfg.Telemetry.SampleRate > 0 {
		tracingCfg.SampleRate = cfg.Telemetry.SampleRate
	}
	if cfg.Telemetry.Environment != "" {
		tracingCfg.Environment = cfg.Telemetry.Environment
	}
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	if err := observability.InitGlobalAuditLogger(observability.DefaultAuditConfig()); err != nil {
		return fmt.Errorf("initializing audit logger: %w", err)
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg.Vector)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}

	topK := resolveTopK(0, cfg.Vector)
	retriever, err := rag.NewRetriever(provider, repo, topK)
	if err != nil {
		return err
	}
	pipeline, err := rag.NewPipeline(retriever, provider)
	if err != nil {
		return err
	}
	pipeline.MinScore = cfg.Vector.MinScore
	embedder := vector.NewEmbedder(provider, repo)

	health := server.NewHealthServer(nil)
	health.RegisterCheck("llm", server.LLMHealthChecker(provider.Name(), nil))
	vectorCheck := func(ctx context.Context) error { return nil }
	if sq, ok := repo.(*vector.SQLiteRepository); ok {
		vectorCheck = func(ctx context.Context) error {
			n, err := sq.Count(ctx)
			if err == nil {
				observability.Metrics().CorpusDocuments.Set(float64(n))
			}
			return err
		}
	}
	health.RegisterCheck("vector-store", server.VectorStoreHealthChecker(vectorCheck))
	health.SetReady(true)

	addr := addrOverride
	if addr == "" {
		addr = cfg.Server.Addr
	}
	apiCfg := server.DefaultAPIConfig()
	if addr != "" {
		apiCfg.Addr = addr
	}
	apiCfg.TopK = topK

	api := server.NewAPIServer(apiCfg, retriever, pipeline, embedder, newSplitter(cfg.Ingest), nil, health, logger)
	api.SetAgentRunner(func(ctx context.Context, name, task string, maxSteps int) (*agents.AgentResult, error) {
		agent, params, err := newAgent(name, task, maxSteps, 0)
		if err != nil {
			return nil, err
		}
		return agent.Run(ctx, &agents.AgentContext{
			LLM:       provider,
			VectorDB:  repo,
			Retriever: retriever,
			Params:    params,
		})
	})

	shutdown := server.NewShutdownHandler(nil)
	shutdown.Register(server.HTTPServerShutdownHook("http-server", api.Stop))
	shutdown.Register(server.TracingShutdownHook(tp.Shutdown))
	shutdown.Register(server.VectorStoreShutdownHook(repo.Close))
	shutdown.Register(server.AuditLoggerShutdownHook(observability.Audit().Close))
	shutdown.Start()

	logger.Info("sift API listening",
		zap.String("addr", apiCfg.Addr),
		zap.String("backend", cfg.Vector.Backend),
		zap.String("provider", provider.Name()))

	go func() {
		if err := api.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
			shutdown.Shutdown()
		}
	}()

	shutdown.Wait()
	logger.Info("shutdown complete")
	return nil
}

// collectFiles returns path itself for a file, or all regular files under it
// for a directory.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}
	return files, nil
}

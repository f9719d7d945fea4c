package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xebia/sift/internal/agents"
	"github.com/xebia/sift/internal/observability"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/sessions"
	"github.com/xebia/sift/internal/vector"
)

// APIConfig configures the JSON API server.
type APIConfig struct {
	Addr string // e.g. ":8080"
	// TopK is the default number of passages per retrieval when a request
	// leaves it unset.
	TopK int
}

// DefaultAPIConfig returns sensible defaults.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{Addr: ":8080", TopK: 4}
}

// AgentRunnerFunc runs a named agent task and returns its result.
type AgentRunnerFunc func(ctx context.Context, name, task string, maxSteps int) (*agents.AgentResult, error)

// APIServer exposes the retrieval pipeline over HTTP.
type APIServer struct {
	config      *APIConfig
	retriever   *rag.Retriever
	pipeline    *rag.Pipeline
	embedder    *vector.Embedder
	splitter    *rag.Splitter
	store       *sessions.Store
	health      *HealthServer
	logger      *zap.Logger
	server      *http.Server
	agentRunner AgentRunnerFunc
}

// SetAgentRunner enables the /v1/agent endpoint.
func (s *APIServer) SetAgentRunner(fn AgentRunnerFunc) {
	s.agentRunner = fn
}

// NewAPIServer creates the API server. health may be nil, in which case the
// probe endpoints report a static healthy state.
func NewAPIServer(config *APIConfig, retriever *rag.Retriever, pipeline *rag.Pipeline, embedder *vector.Embedder, splitter *rag.Splitter, store *sessions.Store, health *HealthServer, logger *zap.Logger) *APIServer {
	if config == nil {
		config = DefaultAPIConfig()
	}
	if splitter == nil {
		splitter = rag.DefaultSplitter()
	}
	if store == nil {
		store = sessions.NewStore()
	}
	if health == nil {
		health = NewHealthServer(nil)
		health.SetReady(true)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &APIServer{
		config:    config,
		retriever: retriever,
		pipeline:  pipeline,
		embedder:  embedder,
		splitter:  splitter,
		store:     store,
		health:    health,
		logger:    logger,
	}

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the API routes.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/ask", s.handleAsk)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	mux.HandleFunc("/v1/agent", s.handleAgent)
	mux.HandleFunc("/v1/sessions", s.handleSessions)
	mux.HandleFunc("/v1/sessions/", s.handleSessionDetail)
	mux.HandleFunc("/v1/stats", s.handleStats)

	mux.Handle("/metrics", observability.Metrics().Handler())

	// Probe endpoints share the health server's handlers.
	probes := s.health.Handler()
	for _, p := range []string{"/health", "/healthz", "/ready", "/readyz", "/live", "/livez"} {
		mux.Handle(p, probes)
	}

	return s.loggingMiddleware(mux)
}

// Start begins serving the API.
func (s *APIServer) Start() error {
	s.logger.Info("starting api server", zap.String("addr", s.config.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type queryResponse struct {
	Results []vector.SearchResult `json:"results"`
}

// handleQuery handles POST /v1/query: embed the query and return the most
// similar passages.
func (s *APIServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.retriever == nil {
		http.Error(w, "Retrieval is not configured", http.StatusServiceUnavailable)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	ctx, span := observability.StartRetrievalSpan(r.Context(), topK)
	defer span.End()

	start := time.Now()
	results, err := s.retriever.Retrieve(ctx, req.Query, topK)
	if err != nil {
		observability.RecordError(span, err)
		s.logger.Error("query failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	topScore := 0.0
	if len(results) > 0 {
		topScore = results[0].Score
	}
	observability.RecordRetrievalResult(span, len(results), topScore)
	observability.Metrics().RecordRetrieval(time.Since(start), len(results), topScore)

	if results == nil {
		results = []vector.SearchResult{}
	}
	s.respondJSON(w, queryResponse{Results: results})
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type askResponse struct {
	SessionID string      `json:"session_id"`
	Answer    *rag.Answer `json:"answer"`
}

// handleAsk handles POST /v1/ask: run the full retrieval-augmented pipeline
// and record the interaction as a session.
func (s *APIServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		http.Error(w, "Question answering is not configured", http.StatusServiceUnavailable)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	session := &sessions.Session{
		ID:        uuid.NewString(),
		Question:  req.Question,
		Status:    sessions.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.store.Create(session)
	s.addTranscript(session.ID, "user", req.Question)

	answer, err := s.pipeline.Ask(r.Context(), req.Question, topK)
	done := time.Now().UTC()
	if err != nil {
		s.store.Update(session.ID, func(sess *sessions.Session) {
			sess.Status = sessions.StatusFailed
			sess.CompletedAt = &done
			sess.Error = err.Error()
		})
		s.logger.Error("ask failed", zap.String("session_id", session.ID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.addTranscript(session.ID, "assistant", answer.Text)
	s.store.Update(session.ID, func(sess *sessions.Session) {
		sess.Status = sessions.StatusCompleted
		sess.CompletedAt = &done
		sess.Answer = answer.Text
		sess.LLMCalls = 1
		sess.TotalTokens = answer.InputTokens + answer.OutputTokens
		for _, src := range answer.Sources {
			sess.Sources = append(sess.Sources, src.ID)
		}
	})

	s.respondJSON(w, askResponse{SessionID: session.ID, Answer: answer})
}

type ingestRequest struct {
	// Text is chunked by the configured splitter before indexing.
	Text string `json:"text"`
	// Source is recorded in each chunk's metadata.
	Source string `json:"source,omitempty"`
}

type ingestResponse struct {
	IDs    []string `json:"ids"`
	Chunks int      `json:"chunks"`
}

// handleIngest handles POST /v1/ingest: chunk, embed, and store a document.
func (s *APIServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.embedder == nil {
		http.Error(w, "Ingestion is not configured", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	chunks := s.splitter.Split(req.Text)
	metadata := make([]map[string]string, len(chunks))
	if req.Source != "" {
		for i := range metadata {
			metadata[i] = map[string]string{"source": req.Source}
		}
	}

	ctx, span := observability.StartIngestSpan(r.Context(), req.Source)
	defer span.End()

	start := time.Now()
	ids, err := s.embedder.IndexTexts(ctx, chunks, metadata)
	observability.Metrics().RecordIngest(time.Since(start), len(ids), err)
	if err != nil {
		observability.RecordError(span, err)
		s.logger.Error("ingest failed", zap.String("source", req.Source), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	observability.RecordIngestResult(span, len(chunks), len(ids))

	if ids == nil {
		ids = []string{}
	}
	s.respondJSON(w, ingestResponse{IDs: ids, Chunks: len(ids)})
}

type agentRequest struct {
	// Agent selects the agent to run (default "researcher").
	Agent    string `json:"agent,omitempty"`
	Task     string `json:"task"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

type agentResponse struct {
	SessionID string `json:"session_id"`
	Output    string `json:"output"`
	Steps     int    `json:"steps"`
}

// handleAgent handles POST /v1/agent: run a tool-using agent and record the
// run as a session, with every tool step in its transcript.
func (s *APIServer) handleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.agentRunner == nil {
		http.Error(w, "Agents are not configured", http.StatusServiceUnavailable)
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}
	if req.Agent == "" {
		req.Agent = "researcher"
	}

	session := &sessions.Session{
		ID:        uuid.NewString(),
		Agent:     req.Agent,
		Question:  req.Task,
		Status:    sessions.StatusPending,
		StartedAt: time.Now().UTC(),
	}
	s.store.Create(session)
	s.addTranscript(session.ID, "user", req.Task)

	s.store.Update(session.ID, func(sess *sessions.Session) {
		sess.Status = sessions.StatusRunning
	})
	result, err := s.agentRunner(r.Context(), req.Agent, req.Task, req.MaxSteps)
	done := time.Now().UTC()
	if err != nil {
		s.store.Update(session.ID, func(sess *sessions.Session) {
			sess.Status = sessions.StatusFailed
			sess.CompletedAt = &done
			sess.Error = err.Error()
		})
		s.logger.Error("agent failed",
			zap.String("session_id", session.ID),
			zap.String("agent", req.Agent),
			zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, step := range result.Steps {
		s.addTranscript(session.ID, "tool", step.Tool+": "+step.Observation)
	}
	s.addTranscript(session.ID, "assistant", result.Output)

	s.store.Update(session.ID, func(sess *sessions.Session) {
		sess.Status = sessions.StatusCompleted
		sess.CompletedAt = &done
		sess.Answer = result.Output
		sess.LLMCalls = len(result.Steps) + 1
	})

	s.respondJSON(w, agentResponse{SessionID: session.ID, Output: result.Output, Steps: len(result.Steps)})
}

func (s *APIServer) addTranscript(sessionID, role, content string) {
	s.store.AddTranscript(sessions.TranscriptEntry{
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   content,
	})
}

// handleSessions handles GET /v1/sessions.
func (s *APIServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respondJSON(w, s.store.List())
}

// handleSessionDetail handles GET /v1/sessions/{id} and
// GET /v1/sessions/{id}/transcript.
func (s *APIServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/v1/sessions/"), "/")
	if id == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	session, ok := s.store.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	switch sub {
	case "":
		s.respondJSON(w, session)
	case "transcript":
		entries := s.store.GetTranscript(id, 0)
		if entries == nil {
			entries = []sessions.TranscriptEntry{}
		}
		s.respondJSON(w, entries)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleStats handles GET /v1/stats.
func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respondJSON(w, s.store.GetStats())
}

func (s *APIServer) respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

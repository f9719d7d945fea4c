package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Gauge is a metric that can move in both directions.
type Gauge struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Histogram tracks a value distribution over fixed buckets.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the seconds elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns how many values have been observed.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// DefaultBuckets covers request latencies from 1ms to 10s.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// MetricsRegistry holds registered metrics and renders them in the
// Prometheus text exposition format.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter registers a counter under name.
func (r *MetricsRegistry) NewCounter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	r.mu.Lock()
	r.counters[name] = c
	r.mu.Unlock()
	return c
}

// NewGauge registers a gauge under name.
func (r *MetricsRegistry) NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	r.mu.Lock()
	r.gauges[name] = g
	r.mu.Unlock()
	return g
}

// NewHistogram registers a histogram under name. Nil buckets use
// DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.mu.Lock()
	r.histos[name] = h
	r.mu.Unlock()
	return h
}

// Handler serves the registry in Prometheus text format.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus renders every metric, sorted by name within each kind.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedNames(r.counters) {
		c := r.counters[name]
		writeHeader(w, c.name, "counter", c.help)
		fmt.Fprintf(w, "%s %s\n", c.name, formatValue(c.Value()))
	}
	for _, name := range sortedNames(r.gauges) {
		g := r.gauges[name]
		writeHeader(w, g.name, "gauge", g.help)
		fmt.Fprintf(w, "%s %s\n", g.name, formatValue(g.Value()))
	}
	for _, name := range sortedNames(r.histos) {
		r.histos[name].write(w)
	}
}

func (h *Histogram) write(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeHeader(w, h.name, "histogram", h.help)
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, formatValue(bound), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(w, "%s_sum %s\n", h.name, formatValue(h.sum))
	fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
}

func writeHeader(w io.Writer, name, kind, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedNames[M any](m map[string]M) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SiftMetrics groups the metrics the toolkit emits.
type SiftMetrics struct {
	Registry *MetricsRegistry

	LLMRequestsTotal   *Counter
	LLMRequestDuration *Histogram
	LLMTokensTotal     *Counter
	LLMErrorsTotal     *Counter

	RetrievalsTotal   *Counter
	RetrievalDuration *Histogram
	RetrievalResults  *Histogram
	RetrievalTopScore *Gauge

	IngestDocsTotal   *Counter
	IngestChunksTotal *Counter
	IngestErrorsTotal *Counter
	IngestDuration    *Histogram

	AgentRunsTotal   *Counter
	AgentRunDuration *Histogram
	AgentErrorsTotal *Counter
	AgentToolSteps   *Histogram

	CorpusDocuments *Gauge
}

// NewSiftMetrics registers the full metric set on a fresh registry.
func NewSiftMetrics() *SiftMetrics {
	r := NewMetricsRegistry()
	return &SiftMetrics{
		Registry: r,

		LLMRequestsTotal:   r.NewCounter("sift_llm_requests_total", "Total LLM API requests"),
		LLMRequestDuration: r.NewHistogram("sift_llm_request_duration_seconds", "LLM request duration", nil),
		LLMTokensTotal:     r.NewCounter("sift_llm_tokens_total", "Total tokens used"),
		LLMErrorsTotal:     r.NewCounter("sift_llm_errors_total", "Total LLM errors"),

		RetrievalsTotal:   r.NewCounter("sift_retrievals_total", "Total vector searches"),
		RetrievalDuration: r.NewHistogram("sift_retrieval_duration_seconds", "Vector search duration", nil),
		RetrievalResults:  r.NewHistogram("sift_retrieval_results", "Results returned per search", []float64{0, 1, 2, 5, 10, 20, 50}),
		RetrievalTopScore: r.NewGauge("sift_retrieval_top_score", "Latest best similarity score"),

		IngestDocsTotal:   r.NewCounter("sift_ingest_documents_total", "Total documents ingested"),
		IngestChunksTotal: r.NewCounter("sift_ingest_chunks_total", "Total chunks stored"),
		IngestErrorsTotal: r.NewCounter("sift_ingest_errors_total", "Total ingestion errors"),
		IngestDuration:    r.NewHistogram("sift_ingest_duration_seconds", "Document ingestion duration", nil),

		AgentRunsTotal:   r.NewCounter("sift_agent_runs_total", "Total agent runs"),
		AgentRunDuration: r.NewHistogram("sift_agent_run_duration_seconds", "Agent run duration", nil),
		AgentErrorsTotal: r.NewCounter("sift_agent_errors_total", "Total agent errors"),
		AgentToolSteps:   r.NewHistogram("sift_agent_tool_steps", "Tool calls per agent run", []float64{0, 1, 2, 3, 5, 8, 13}),

		CorpusDocuments: r.NewGauge("sift_corpus_documents", "Documents in the vector store"),
	}
}

// Handler serves the metrics endpoint.
func (m *SiftMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordLLMRequest tracks one completion call.
func (m *SiftMetrics) RecordLLMRequest(duration time.Duration, tokens int, err error) {
	m.LLMRequestsTotal.Inc()
	m.LLMRequestDuration.Observe(duration.Seconds())
	m.LLMTokensTotal.Add(float64(tokens))
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

// RecordRetrieval tracks one vector search.
func (m *SiftMetrics) RecordRetrieval(duration time.Duration, resultCount int, topScore float64) {
	m.RetrievalsTotal.Inc()
	m.RetrievalDuration.Observe(duration.Seconds())
	m.RetrievalResults.Observe(float64(resultCount))
	m.RetrievalTopScore.Set(topScore)
}

// RecordIngest tracks one document ingestion.
func (m *SiftMetrics) RecordIngest(duration time.Duration, chunks int, err error) {
	m.IngestDocsTotal.Inc()
	m.IngestChunksTotal.Add(float64(chunks))
	m.IngestDuration.Observe(duration.Seconds())
	if err != nil {
		m.IngestErrorsTotal.Inc()
	}
}

// RecordAgentRun tracks one agent execution.
func (m *SiftMetrics) RecordAgentRun(duration time.Duration, toolSteps int, err error) {
	m.AgentRunsTotal.Inc()
	m.AgentRunDuration.Observe(duration.Seconds())
	m.AgentToolSteps.Observe(float64(toolSteps))
	if err != nil {
		m.AgentErrorsTotal.Inc()
	}
}

var (
	globalMetrics *SiftMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *SiftMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewSiftMetrics()
	})
	return globalMetrics
}

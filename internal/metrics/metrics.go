// Package metrics collects per-run statistics for ingestion and
// question-answering runs and renders them as a report.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunMetrics collects statistics for a full CLI or workflow run.
type RunMetrics struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Duration   time.Duration    `json:"duration_ms,omitempty"`
	Ingest     IngestMetrics    `json:"ingest"`
	Retrieval  RetrievalMetrics `json:"retrieval"`
	LLM        LLMMetrics       `json:"llm"`
	Stages     []StageMetrics   `json:"stages,omitempty"`
	Backend    string           `json:"backend"` // "memory", "sqlite", or "qdrant"
	Errors     []string         `json:"errors,omitempty"`
}

type IngestMetrics struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	TotalBytes int `json:"total_bytes"`
}

type RetrievalMetrics struct {
	Queries  int     `json:"queries"`
	Results  int     `json:"results"`
	TopScore float64 `json:"top_score"`
}

type LLMMetrics struct {
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	Calls        int    `json:"calls"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

type StageMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	Errors   int           `json:"errors"`
}

// New starts tracking a run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now()}
}

// CollectIngest records the chunking outcome for one document.
func (m *RunMetrics) CollectIngest(chunks []string) {
	m.Ingest.Documents++
	m.Ingest.Chunks += len(chunks)
	for _, c := range chunks {
		m.Ingest.TotalBytes += len(c)
	}
}

// CollectRetrieval records one search round.
func (m *RunMetrics) CollectRetrieval(resultCount int, topScore float64) {
	m.Retrieval.Queries++
	m.Retrieval.Results += resultCount
	if topScore > m.Retrieval.TopScore {
		m.Retrieval.TopScore = topScore
	}
}

// CollectLLM records one completion call.
func (m *RunMetrics) CollectLLM(provider, model string, inputTokens, outputTokens int) {
	m.LLM.Provider = provider
	if model != "" {
		m.LLM.Model = model
	}
	m.LLM.Calls++
	m.LLM.InputTokens += inputTokens
	m.LLM.OutputTokens += outputTokens
}

// AddStage records a single stage's timing and status.
func (m *RunMetrics) AddStage(name string, d time.Duration, errCount int) {
	m.Stages = append(m.Stages, StageMetrics{
		Name:     name,
		Duration: d,
		Errors:   errCount,
	})
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish(errs []string) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.Errors = errs
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║          SIFT RUN REPORT             ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Backend:     %-23s║\n", m.Backend)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ INGEST\n")
	fmt.Fprintf(w, "║   Documents:   %d\n", m.Ingest.Documents)
	fmt.Fprintf(w, "║   Chunks:      %d\n", m.Ingest.Chunks)
	fmt.Fprintf(w, "║   Total Size:  %s\n", formatBytes(m.Ingest.TotalBytes))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ RETRIEVAL\n")
	fmt.Fprintf(w, "║   Queries:     %d\n", m.Retrieval.Queries)
	fmt.Fprintf(w, "║   Results:     %d\n", m.Retrieval.Results)
	fmt.Fprintf(w, "║   Top Score:   %.3f\n", m.Retrieval.TopScore)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ LLM (%s)\n", m.LLM.Provider)
	fmt.Fprintf(w, "║   Calls:       %d\n", m.LLM.Calls)
	fmt.Fprintf(w, "║   Tokens:      %d in / %d out\n", m.LLM.InputTokens, m.LLM.OutputTokens)
	if len(m.Stages) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ STAGES\n")
		for _, s := range m.Stages {
			status := "OK"
			if s.Errors > 0 {
				status = fmt.Sprintf("%d errors", s.Errors)
			}
			fmt.Fprintf(w, "║   %-14s %8s  %s\n", s.Name, s.Duration.Round(time.Millisecond), status)
		}
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

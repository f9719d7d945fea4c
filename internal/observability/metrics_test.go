package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("test_total", "help")

	c.Inc()
	c.Add(2.5)
	if got := c.Value(); got != 3.5 {
		t.Errorf("expected 3.5, got %v", got)
	}
}

func TestGauge(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("test_gauge", "help")

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(-3)
	if got := g.Value(); got != 7 {
		t.Errorf("expected 7, got %v", got)
	}
}

func TestHistogram_BucketsAreCumulativeInOutput(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("test_seconds", "help", []float64{0.1, 1, 10})

	h.Observe(0.05) // all three buckets
	h.Observe(0.5)  // le=1 and le=10
	h.Observe(5)    // le=10 only
	h.Observe(100)  // +Inf only

	if h.Count() != 4 {
		t.Fatalf("expected 4 observations, got %d", h.Count())
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, line := range []string{
		`test_seconds_bucket{le="0.1"} 1`,
		`test_seconds_bucket{le="1"} 2`,
		`test_seconds_bucket{le="10"} 3`,
		`test_seconds_bucket{le="+Inf"} 4`,
		`test_seconds_count 4`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("output missing %q:\n%s", line, body)
		}
	}
}

func TestHistogram_ObserveDuration(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("dur_seconds", "help", nil)

	h.ObserveDuration(time.Now().Add(-10 * time.Millisecond))
	if h.Count() != 1 {
		t.Errorf("expected 1 observation, got %d", h.Count())
	}
}

func TestWritePrometheus_Format(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("b_total", "second counter").Add(2)
	r.NewCounter("a_total", "first counter").Inc()
	r.NewGauge("queue_depth", "waiting items").Set(7)

	var sb strings.Builder
	r.WritePrometheus(&sb)
	out := sb.String()

	if !strings.Contains(out, "# HELP a_total first counter\n# TYPE a_total counter\na_total 1\n") {
		t.Errorf("counter block malformed:\n%s", out)
	}
	if !strings.Contains(out, "queue_depth 7\n") {
		t.Errorf("gauge missing:\n%s", out)
	}
	// Sorted output keeps scrapes diffable.
	if strings.Index(out, "a_total 1") > strings.Index(out, "b_total 2") {
		t.Errorf("counters not sorted by name:\n%s", out)
	}
}

func TestHandler_ContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsRegistry().Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestSiftMetrics_Recorders(t *testing.T) {
	m := NewSiftMetrics()

	m.RecordLLMRequest(100*time.Millisecond, 150, nil)
	m.RecordLLMRequest(time.Second, 0, errors.New("timeout"))
	if m.LLMRequestsTotal.Value() != 2 || m.LLMErrorsTotal.Value() != 1 {
		t.Errorf("llm counters: %v/%v", m.LLMRequestsTotal.Value(), m.LLMErrorsTotal.Value())
	}
	if m.LLMTokensTotal.Value() != 150 {
		t.Errorf("token counter: %v", m.LLMTokensTotal.Value())
	}

	m.RecordRetrieval(5*time.Millisecond, 4, 0.91)
	if m.RetrievalsTotal.Value() != 1 || m.RetrievalTopScore.Value() != 0.91 {
		t.Errorf("retrieval metrics: %v/%v", m.RetrievalsTotal.Value(), m.RetrievalTopScore.Value())
	}

	m.RecordIngest(time.Second, 12, nil)
	m.RecordIngest(time.Second, 0, errors.New("embed failed"))
	if m.IngestDocsTotal.Value() != 2 || m.IngestChunksTotal.Value() != 12 || m.IngestErrorsTotal.Value() != 1 {
		t.Errorf("ingest counters: %v/%v/%v",
			m.IngestDocsTotal.Value(), m.IngestChunksTotal.Value(), m.IngestErrorsTotal.Value())
	}

	m.RecordAgentRun(2*time.Second, 3, nil)
	if m.AgentRunsTotal.Value() != 1 || m.AgentToolSteps.Count() != 1 {
		t.Errorf("agent metrics: %v/%v", m.AgentRunsTotal.Value(), m.AgentToolSteps.Count())
	}
}

func TestMetrics_GlobalSingleton(t *testing.T) {
	if Metrics() != Metrics() {
		t.Error("expected the same instance on repeated calls")
	}
}

package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRunMetrics_Collect(t *testing.T) {
	m := New()

	m.Backend = "memory"
	m.CollectIngest([]string{"first chunk", "second chunk"})
	m.CollectIngest([]string{"third"})
	m.CollectRetrieval(3, 0.91)
	m.CollectRetrieval(2, 0.75)
	m.CollectLLM("openai", "gpt-4", 120, 40)
	m.CollectLLM("openai", "gpt-4", 80, 30)
	m.AddStage("ingest", 100*time.Millisecond, 0)
	m.Finish(nil)

	if m.Ingest.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", m.Ingest.Documents)
	}
	if m.Ingest.Chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", m.Ingest.Chunks)
	}
	if m.Retrieval.Queries != 2 || m.Retrieval.Results != 5 {
		t.Errorf("unexpected retrieval metrics: %+v", m.Retrieval)
	}
	if m.Retrieval.TopScore != 0.91 {
		t.Errorf("expected top score 0.91, got %f", m.Retrieval.TopScore)
	}
	if m.LLM.Calls != 2 || m.LLM.InputTokens != 200 || m.LLM.OutputTokens != 70 {
		t.Errorf("unexpected llm metrics: %+v", m.LLM)
	}
	if m.Duration <= 0 {
		t.Error("expected positive duration after Finish")
	}
}

func TestRunMetrics_PrintSummary(t *testing.T) {
	m := New()
	m.Backend = "sqlite"
	m.CollectIngest([]string{"a"})
	m.CollectRetrieval(1, 0.5)
	m.CollectLLM("anthropic", "claude-3", 10, 5)
	m.AddStage("ask", 50*time.Millisecond, 1)
	m.Finish([]string{"one passage dropped"})

	var buf bytes.Buffer
	m.PrintSummary(&buf)
	out := buf.String()

	for _, want := range []string{"SIFT RUN REPORT", "sqlite", "INGEST", "RETRIEVAL", "LLM (anthropic)", "1 errors", "one passage dropped"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected summary to contain %q:\n%s", want, out)
		}
	}
}

func TestRunMetrics_JSON(t *testing.T) {
	m := New()
	m.Backend = "memory"
	m.CollectLLM("openai", "", 1, 2)
	m.Finish(nil)

	data, err := m.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}

	var decoded RunMetrics
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Backend != "memory" || decoded.LLM.Calls != 1 {
		t.Errorf("unexpected round-trip: %+v", decoded)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

package curator

import (
	"context"
	"strings"
	"testing"

	"github.com/xebia/sift/internal/agents"
	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/vector"
)

type digestProvider struct {
	digest     string
	lastPrompt *llm.Prompt
	vec        []float32
}

func (d *digestProvider) Name() string { return "digest" }

func (d *digestProvider) Complete(_ context.Context, prompt *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	d.lastPrompt = prompt
	return &llm.Response{Content: d.digest, Model: "digest-1"}, nil
}

func (d *digestProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = d.vec
	}
	return out, nil
}

func newContext(t *testing.T, provider llm.Provider, docs []vector.Document, params map[string]string) *agents.AgentContext {
	t.Helper()
	repo := vector.NewMemoryRepository()
	if len(docs) > 0 {
		if err := repo.Upsert(context.Background(), docs); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	retriever, err := rag.NewRetriever(provider, repo, 4)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	return &agents.AgentContext{LLM: provider, VectorDB: repo, Retriever: retriever, Params: params}
}

func TestCurator_Digest(t *testing.T) {
	provider := &digestProvider{digest: "Covers sky color thoroughly.", vec: []float32{1, 0}}
	ac := newContext(t, provider, []vector.Document{
		{ID: "1", Content: "the sky is blue", Vector: []float32{1, 0}},
		{ID: "2", Content: "grass is green", Vector: []float32{0, 1}},
	}, map[string]string{"topic": "sky color", "top_k": "2"})

	result, err := New().Run(context.Background(), ac)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Output != "Covers sky color thoroughly." {
		t.Errorf("unexpected output %q", result.Output)
	}
	if result.Metadata["passages"] != "2" {
		t.Errorf("expected 2 passages, got %q", result.Metadata["passages"])
	}

	body := provider.lastPrompt.Messages[0].Content
	if !strings.Contains(body, "the sky is blue") || !strings.Contains(body, "Topic: sky color") {
		t.Errorf("expected passages and topic in prompt, got %q", body)
	}
}

func TestCurator_EmptyCorpus(t *testing.T) {
	provider := &digestProvider{vec: []float32{1, 0}}
	ac := newContext(t, provider, nil, map[string]string{"topic": "anything"})

	result, err := New().Run(context.Background(), ac)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result.Output, "no passages") {
		t.Errorf("expected empty-corpus report, got %q", result.Output)
	}
	if provider.lastPrompt != nil {
		t.Error("expected no completion call for empty corpus")
	}
}

func TestCurator_InvalidParams(t *testing.T) {
	provider := &digestProvider{vec: []float32{1, 0}}

	if _, err := New().Run(context.Background(), newContext(t, provider, nil, map[string]string{})); err == nil {
		t.Error("expected error without topic")
	}
	if _, err := New().Run(context.Background(), newContext(t, provider, nil, map[string]string{"topic": "x", "top_k": "nope"})); err == nil {
		t.Error("expected error for invalid top_k")
	}
}

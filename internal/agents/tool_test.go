package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/vector"
)

type fixedEmbedProvider struct {
	vec []float32
}

func (f *fixedEmbedProvider) Name() string { return "fixed" }

func (f *fixedEmbedProvider) Complete(context.Context, *llm.Prompt, *llm.RequestOptions) (*llm.Response, error) {
	return &llm.Response{}, nil
}

func (f *fixedEmbedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func newTestRetriever(t *testing.T) *rag.Retriever {
	t.Helper()
	repo := vector.NewMemoryRepository()
	err := repo.Upsert(context.Background(), []vector.Document{
		{ID: "1", Content: "the sky is blue", Vector: []float32{1, 0}},
		{ID: "2", Content: "grass is green", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	retriever, err := rag.NewRetriever(&fixedEmbedProvider{vec: []float32{1, 0}}, repo, 4)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	return retriever
}

func TestToolRegistry(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(&echoTool{name: "a"})
	reg.Register(&echoTool{name: "b"})

	if _, ok := reg.Get("a"); !ok {
		t.Error("expected tool a to be registered")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("did not expect tool missing")
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected registration order [a b], got %v", names)
	}
	if !strings.Contains(reg.Describe(), "a: echoes input") {
		t.Errorf("unexpected catalog: %q", reg.Describe())
	}
}

func TestSearchTool_Call(t *testing.T) {
	tool := NewSearchTool(newTestRetriever(t), 8)

	out, err := tool.Call(context.Background(), map[string]string{"query": "blue things", "top_k": "1"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "the sky is blue") {
		t.Errorf("expected best passage in output, got %q", out)
	}
	if strings.Contains(out, "grass is green") {
		t.Errorf("expected top_k=1 to exclude second passage, got %q", out)
	}
}

func TestSearchTool_InvalidInput(t *testing.T) {
	tool := NewSearchTool(newTestRetriever(t), 8)

	if _, err := tool.Call(context.Background(), map[string]string{}); err == nil {
		t.Error("expected error for missing query")
	}
	if _, err := tool.Call(context.Background(), map[string]string{"query": "x", "top_k": "zero"}); err == nil {
		t.Error("expected error for non-numeric top_k")
	}
	if _, err := tool.Call(context.Background(), map[string]string{"query": "x", "top_k": "-1"}); err == nil {
		t.Error("expected error for negative top_k")
	}
}

func TestSearchTool_CapsTopK(t *testing.T) {
	tool := NewSearchTool(newTestRetriever(t), 1)

	out, err := tool.Call(context.Background(), map[string]string{"query": "everything", "top_k": "50"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if strings.Count(out, "[") != 1 {
		t.Errorf("expected capped single result, got %q", out)
	}
}

package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/xebia/sift/internal/llm"
)

type stubEmbedProvider struct {
	vectors [][]float32
	err     error
	calls   int
}

func (s *stubEmbedProvider) Name() string { return "stub" }

func (s *stubEmbedProvider) Complete(context.Context, *llm.Prompt, *llm.RequestOptions) (*llm.Response, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubEmbedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(texts) > len(s.vectors) {
		return s.vectors, nil
	}
	return s.vectors[:len(texts)], nil
}

func TestEmbedder_IndexTexts(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{1, 0}, {0, 1}}}
	repo := NewMemoryRepository()
	embedder := NewEmbedder(provider, repo)

	ids, err := embedder.IndexTexts(context.Background(), []string{"one", "two"}, []map[string]string{{"source": "a"}, nil})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if repo.Len() != 2 {
		t.Fatalf("expected 2 stored documents, got %d", repo.Len())
	}

	results, err := repo.Search(context.Background(), []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].Content != "one" {
		t.Errorf("expected content 'one', got %q", results[0].Content)
	}
	if results[0].Metadata["source"] != "a" {
		t.Errorf("expected metadata to be stored, got %v", results[0].Metadata)
	}
}

func TestEmbedder_CountMismatch(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{1, 0}}}
	embedder := NewEmbedder(provider, NewMemoryRepository())

	// Provider returns one vector for two texts.
	provider.vectors = [][]float32{{1, 0}}
	if _, err := embedder.IndexTexts(context.Background(), []string{"one", "two"}, nil); err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}

func TestEmbedder_EmptyInput(t *testing.T) {
	provider := &stubEmbedProvider{}
	embedder := NewEmbedder(provider, NewMemoryRepository())

	ids, err := embedder.IndexTexts(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %d", len(ids))
	}
	if provider.calls != 0 {
		t.Errorf("expected no provider calls for empty input, got %d", provider.calls)
	}
}

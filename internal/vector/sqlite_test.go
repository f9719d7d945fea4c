package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "sift.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_UpsertAndSearch(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "a", Content: "alpha", Vector: []float32{1, 0}, Metadata: map[string]string{"source": "notes"}},
		{ID: "b", Content: "beta", Vector: []float32{0, 1}},
		{ID: "c", Content: "gamma", Vector: []float32{0.9, 0.1}},
	}
	if err := repo.Upsert(ctx, docs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := repo.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "c" {
		t.Errorf("expected [a c], got [%s %s]", results[0].ID, results[1].ID)
	}
	if results[0].Metadata["source"] != "notes" {
		t.Errorf("expected metadata to round-trip, got %v", results[0].Metadata)
	}
}

func TestSQLiteRepository_UpsertReplaces(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, []Document{{ID: "a", Content: "old", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, []Document{{ID: "a", Content: "new", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 document after replace, got %d", n)
	}

	results, err := repo.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].Content != "new" {
		t.Errorf("expected replaced content, got %q", results[0].Content)
	}
}

func TestSQLiteRepository_EmptyAndInvalidInputs(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()

	results, err := repo.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}

	if _, err := repo.Search(ctx, []float32{1, 0}, 0); err == nil {
		t.Error("expected error for topK=0")
	}
	if err := repo.Upsert(ctx, []Document{{Content: "no id", Vector: []float32{1}}}); err == nil {
		t.Error("expected error for missing ID")
	}
	if err := repo.Upsert(ctx, []Document{{ID: "x", Content: "no vec"}}); err == nil {
		t.Error("expected error for missing embedding")
	}
}

func TestSQLiteRepository_TieStability(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, []Document{
		{ID: "first", Vector: []float32{0, 1}},
		{ID: "second", Vector: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := repo.Search(ctx, []float32{0, 1}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].ID != "first" || results[1].ID != "second" {
		t.Errorf("expected insertion order on tie, got [%s %s]", results[0].ID, results[1].ID)
	}
}

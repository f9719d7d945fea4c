package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/vec/search"
)

// MemoryRepository is an exact, linear-scan vector index held in memory.
// Documents keep their insertion order, and Search breaks score ties by
// that order. Concurrent searches are safe; Upsert takes the write lock.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs []Document
	mags []float32
	pos  map[string]int
	dim  int
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{pos: make(map[string]int)}
}

// Upsert inserts documents, replacing any existing document with the same ID
// in place so its insertion position is preserved. The first document fixes
// the repository dimensionality; later mismatches are rejected.
func (r *MemoryRepository) Upsert(_ context.Context, docs []Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range docs {
		if len(d.Vector) == 0 {
			return fmt.Errorf("vector: document %q has no embedding", d.ID)
		}
		if r.dim == 0 {
			r.dim = len(d.Vector)
		}
		if len(d.Vector) != r.dim {
			return fmt.Errorf("vector: document %q dimension %d != repository dimension %d", d.ID, len(d.Vector), r.dim)
		}
		mag := search.Float32s(d.Vector).Magnitude()
		if i, ok := r.pos[d.ID]; ok {
			r.docs[i] = d
			r.mags[i] = mag
			continue
		}
		r.pos[d.ID] = len(r.docs)
		r.docs = append(r.docs, d)
		r.mags = append(r.mags, mag)
	}
	return nil
}

// Search scores every document against the query vector by cosine
// similarity and returns the topK best matches in descending score order.
// Zero-magnitude vectors on either side score 0. An empty repository
// returns an empty result; topK must be positive.
func (r *MemoryRepository) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("vector: topK must be positive, got %d", topK)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.docs) == 0 {
		return nil, nil
	}
	if len(vector) != r.dim {
		return nil, fmt.Errorf("vector: query dimension %d != repository dimension %d", len(vector), r.dim)
	}

	query := search.Float32s(vector)
	qmag := query.Magnitude()

	scores := make([]float64, len(r.docs))
	for i := range r.docs {
		if qmag == 0 || r.mags[i] == 0 {
			continue
		}
		scores[i] = float64(1 - query.CosineDistanceWithMagnitudesNeon(r.docs[i].Vector, qmag, r.mags[i]))
	}

	order := make([]int, len(r.docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	k := topK
	if k > len(order) {
		k = len(order)
	}
	out := make([]SearchResult, k)
	for n := 0; n < k; n++ {
		d := r.docs[order[n]]
		out[n] = SearchResult{
			ID:       d.ID,
			Score:    scores[order[n]],
			Content:  d.Content,
			Metadata: d.Metadata,
		}
	}
	return out, nil
}

// Len returns the number of stored documents.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close() error { return nil }

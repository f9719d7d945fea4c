// Package vector provides embedding storage and cosine-similarity search
// over in-memory, SQLite, and Qdrant backends.
package vector

import "context"

// Document is one text chunk with its embedding vector.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Vector   []float32         `json:"vector,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResult is one match from a similarity search, best matches first.
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Repository stores documents and serves similarity search.
type Repository interface {
	// Upsert inserts docs, replacing any existing document with the same ID.
	Upsert(ctx context.Context, docs []Document) error
	// Search returns the topK most similar documents. topK must be positive.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Close releases backend resources.
	Close() error
}

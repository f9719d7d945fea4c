package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS docs (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	meta      TEXT,
	embedding BLOB NOT NULL
)`

// SQLiteRepository is a durable Repository backed by a SQLite database.
// Embeddings are stored as float32 BLOBs; search is an exact linear scan
// over all rows in insertion (rowid) order, so score ties keep insertion
// order just like MemoryRepository.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite-backed repository at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vector: open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vector: ensure schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Upsert inserts or updates documents in a single transaction. Updating an
// existing ID preserves its rowid, keeping the original insertion order.
func (r *SQLiteRepository) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docs(id, content, meta, embedding) VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content=excluded.content, meta=excluded.meta, embedding=excluded.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("vector: document ID must be set")
		}
		if len(d.Vector) == 0 {
			return fmt.Errorf("vector: document %q has no embedding", d.ID)
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("vector: marshal metadata for %q: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, string(meta), EncodeEmbedding(d.Vector)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search loads all rows, scores them against the query with cosine
// similarity, and returns the topK best matches in descending score order.
func (r *SQLiteRepository) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("vector: topK must be positive, got %d", topK)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, content, meta, embedding FROM docs ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			id, content string
			meta        sql.NullString
			blob        []byte
		)
		if err := rows.Scan(&id, &content, &meta, &blob); err != nil {
			return nil, err
		}
		emb, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("vector: document %q: %w", id, err)
		}
		score, err := CosineSimilarity(vector, emb)
		if err != nil {
			return nil, fmt.Errorf("vector: document %q: %w", id, err)
		}
		res := SearchResult{ID: id, Score: score, Content: content}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &res.Metadata); err != nil {
				return nil, fmt.Errorf("vector: unmarshal metadata for %q: %w", id, err)
			}
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored documents.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error { return r.db.Close() }

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package sqlite provides the durable vector index backend built on
// sqlite-vec. Embeddings live in a vec0 virtual table configured for cosine
// distance; chunk text and access metadata live in a companion table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	store.RegisterBackend("sqlite", func(dataDir string, dimensions int) (store.VectorStore, error) {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
				"creating data directory %s", dataDir)
		}
		return NewVectorStore(filepath.Join(dataDir, "index.db"), dimensions)
	})
}

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore backed by SQLite with sqlite-vec.
type VectorStore struct {
	db         *sql.DB
	dimensions int
}

// NewVectorStore opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and companion chunk table.
func NewVectorStore(dbPath string, dimensions int) (*VectorStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &VectorStore{db: db, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	// distance_metric=cosine makes vec0 report cosine distance (1 - cosine
	// similarity) directly; Search converts back to similarity.
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "creating chunk_vectors virtual table")
	}

	const chunkDDL = `
CREATE TABLE IF NOT EXISTS chunks (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(chunkDDL); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "creating chunks table")
	}

	return nil
}

// Upsert inserts or replaces a chunk's embedding, text and metadata in one
// transaction.
func (v *VectorStore) Upsert(ctx context.Context, entry store.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if len(entry.Embedding) != v.dimensions {
		return dserr.Errorf(dserr.CodeStoreVectorDimensionInvalid,
			"entry %s has %d dimensions, index expects %d",
			entry.ID, len(entry.Embedding), v.dimensions)
	}

	blob, err := sqlite_vec.SerializeFloat32(entry.Embedding)
	if err != nil {
		return dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
			"serializing embedding for %s", entry.ID)
	}

	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
			"marshalling metadata for %s", entry.ID)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE id = ?`, entry.ID); err != nil {
		return dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
			"deleting existing vector %s", entry.ID)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO chunk_vectors(id, embedding) VALUES (?, ?)`, entry.ID, blob); err != nil {
		return dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
			"inserting vector %s", entry.ID)
	}

	const chunkQ = `INSERT INTO chunks(id, text, metadata) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, chunkQ, entry.ID, entry.Text, string(metaJSON)); err != nil {
		return dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
			"upserting chunk %s", entry.ID)
	}

	if err := tx.Commit(); err != nil {
		return dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "committing upsert")
	}
	return nil
}

// Search performs a k-nearest-neighbor search and returns results ordered by
// descending cosine similarity.
func (v *VectorStore) Search(ctx context.Context, query []float32, k int) ([]store.Result, error) {
	if len(query) != v.dimensions {
		return nil, dserr.Errorf(dserr.CodeStoreVectorDimensionInvalid,
			"query has %d dimensions, index expects %d", len(query), v.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "serializing query vector")
	}

	const q = `SELECT v.id, v.distance, COALESCE(c.text, ''), COALESCE(c.metadata, '{}')
FROM chunk_vectors v
LEFT JOIN chunks c ON c.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []store.Result
	for rows.Next() {
		var (
			r        store.Result
			distance float64
			metaStr  string
		)
		if err := rows.Scan(&r.ID, &distance, &r.Text, &metaStr); err != nil {
			return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "scanning search result")
		}

		// Cosine distance is 1 - cosine similarity.
		r.Similarity = 1 - distance

		if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
			return nil, dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
				"unmarshalling metadata for %s", r.ID)
		}

		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "iterating search results")
	}

	return results, nil
}

// Count reports the number of indexed chunks.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "counting chunks")
	}
	return n, nil
}

// All returns every chunk's ID, text and metadata with zero similarity.
func (v *VectorStore) All(ctx context.Context) ([]store.Result, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT id, text, metadata FROM chunks ORDER BY id`)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "listing chunks")
	}
	defer func() { _ = rows.Close() }()

	var results []store.Result
	for rows.Next() {
		var (
			r       store.Result
			metaStr string
		)
		if err := rows.Scan(&r.ID, &r.Text, &metaStr); err != nil {
			return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "scanning chunk row")
		}
		if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
			return nil, dserr.Wrapf(err, dserr.CodeStoreVectorDatabaseFailure,
				"unmarshalling metadata for %s", r.ID)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dserr.Wrap(err, dserr.CodeStoreVectorDatabaseFailure, "iterating chunk rows")
	}

	return results, nil
}

// Close closes the underlying database connection.
func (v *VectorStore) Close() error {
	return v.db.Close()
}

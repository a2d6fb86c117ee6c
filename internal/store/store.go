// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package store defines the vector index abstraction used by the ingest and
// retrieval layers, plus a registry of pluggable backends.
package store

import (
	"context"
	"sync"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Metadata is the per-chunk payload persisted alongside each embedding.
// AccessibleRoles is computed at index time so query-time filtering is a
// pure containment check.
type Metadata struct {
	SourceDocument  string   `json:"source_document"`
	Department      string   `json:"department"`
	AccessibleRoles []string `json:"accessible_roles"`
	TokenCount      int      `json:"token_count"`
}

// Entry is a single indexed chunk: identity, embedding, original text and
// access metadata.
type Entry struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  Metadata
}

// Result is a search hit. Similarity is cosine similarity in [0, 1] for
// unit-normalised embeddings; higher means closer.
type Result struct {
	ID         string
	Similarity float64
	Text       string
	Metadata   Metadata
}

// Validate checks that an entry carries the minimum required fields.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return dserr.New(dserr.CodeStoreEntryInvalid, "entry id must not be empty")
	}
	if len(e.Embedding) == 0 {
		return dserr.New(dserr.CodeStoreEntryInvalid, "entry embedding must not be empty",
			dserr.FieldChunkID(e.ID))
	}
	return nil
}

// VectorStore is a cosine-similarity index over chunk embeddings.
type VectorStore interface {
	// Upsert inserts the entry, replacing any existing entry with the same ID.
	Upsert(ctx context.Context, entry Entry) error

	// Search returns up to k entries nearest to query, ordered by descending
	// similarity. Fewer than k results is not an error.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// Count reports the number of indexed entries.
	Count(ctx context.Context) (int, error)

	// All returns every indexed entry's ID, text and metadata with zero
	// similarity, in no guaranteed order. Used for catalog views.
	All(ctx context.Context) ([]Result, error)

	Close() error
}

// Factory creates a VectorStore rooted at dataDir with the given embedding
// dimensionality.
type Factory func(dataDir string, dimensions int) (VectorStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). Goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// New creates a VectorStore using the named backend.
func New(backend, dataDir string, dimensions int) (VectorStore, error) {
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, dserr.Errorf(dserr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}
	if dimensions <= 0 {
		return nil, dserr.Errorf(dserr.CodeStoreVectorDimensionInvalid,
			"vector dimensions must be positive, got %d", dimensions)
	}

	return factory(dataDir, dimensions)
}

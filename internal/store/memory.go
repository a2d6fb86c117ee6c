// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package store

import (
	"context"
	"math"
	"sort"
	"sync"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

func init() {
	RegisterBackend("memory", func(_ string, dimensions int) (VectorStore, error) {
		return NewMemoryVectorStore(dimensions), nil
	})
}

// Compile-time interface check.
var _ VectorStore = (*MemoryVectorStore)(nil)

// MemoryVectorStore is an in-process brute-force cosine index. It exists for
// tests and small corpora; the sqlite backend is the durable default.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]Entry
	order      []string // insertion order, for stable iteration
}

// NewMemoryVectorStore creates an empty in-memory index.
func NewMemoryVectorStore(dimensions int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimensions: dimensions,
		entries:    map[string]Entry{},
	}
}

// Upsert inserts or replaces an entry by ID.
func (m *MemoryVectorStore) Upsert(_ context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if len(entry.Embedding) != m.dimensions {
		return dserr.Errorf(dserr.CodeStoreVectorDimensionInvalid,
			"entry %s has %d dimensions, index expects %d",
			entry.ID, len(entry.Embedding), m.dimensions)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[entry.ID]; !exists {
		m.order = append(m.order, entry.ID)
	}
	m.entries[entry.ID] = entry
	return nil
}

// Search returns up to k entries ordered by descending cosine similarity.
// Ties preserve insertion order.
func (m *MemoryVectorStore) Search(_ context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, dserr.Errorf(dserr.CodeStoreVectorDimensionInvalid,
			"query has %d dimensions, index expects %d", len(query), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		results = append(results, Result{
			ID:         e.ID,
			Similarity: cosineSimilarity(query, e.Embedding),
			Text:       e.Text,
			Metadata:   e.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count reports the number of indexed entries.
func (m *MemoryVectorStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// All returns every entry with zero similarity, in insertion order.
func (m *MemoryVectorStore) All(_ context.Context) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		results = append(results, Result{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
		})
	}
	return results, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryVectorStore) Close() error { return nil }

// cosineSimilarity computes the cosine of the angle between a and b.
// Zero-magnitude vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

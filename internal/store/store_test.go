// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

func memEntry(id string, embedding []float32, roles ...string) store.Entry {
	return store.Entry{
		ID:        id,
		Embedding: embedding,
		Text:      "text for " + id,
		Metadata: store.Metadata{
			SourceDocument:  id + ".md",
			Department:      "engineering",
			AccessibleRoles: roles,
		},
	}
}

func TestMemoryVectorStore_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore(3)

	require.NoError(t, vs.Upsert(ctx, memEntry("far", []float32{0, 1, 0}, "hr")))
	require.NoError(t, vs.Upsert(ctx, memEntry("near", []float32{0.9, 0.1, 0}, "engineering")))
	require.NoError(t, vs.Upsert(ctx, memEntry("exact", []float32{1, 0, 0}, "engineering")))

	results, err := vs.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "near", results[1].ID)
	assert.Equal(t, "far", results[2].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-9)
}

func TestMemoryVectorStore_SearchTruncatesToK(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore(2)

	require.NoError(t, vs.Upsert(ctx, memEntry("a", []float32{1, 0})))
	require.NoError(t, vs.Upsert(ctx, memEntry("b", []float32{0.8, 0.2})))
	require.NoError(t, vs.Upsert(ctx, memEntry("c", []float32{0, 1})))

	results, err := vs.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryVectorStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore(2)

	require.NoError(t, vs.Upsert(ctx, memEntry("a", []float32{1, 0}, "hr")))
	replaced := memEntry("a", []float32{0, 1}, "finance")
	require.NoError(t, vs.Upsert(ctx, replaced))

	n, err := vs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := vs.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"finance"}, results[0].Metadata.AccessibleRoles)
}

func TestMemoryVectorStore_RejectsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore(2)

	err := vs.Upsert(ctx, store.Entry{Embedding: []float32{1, 0}})
	assert.True(t, dserr.HasCode(err, dserr.CodeStoreEntryInvalid))

	err = vs.Upsert(ctx, store.Entry{ID: "a"})
	assert.True(t, dserr.HasCode(err, dserr.CodeStoreEntryInvalid))

	err = vs.Upsert(ctx, memEntry("a", []float32{1, 0, 0}))
	assert.True(t, dserr.HasCode(err, dserr.CodeStoreVectorDimensionInvalid))
}

func TestMemoryVectorStore_All(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryVectorStore(2)

	require.NoError(t, vs.Upsert(ctx, memEntry("b", []float32{0, 1})))
	require.NoError(t, vs.Upsert(ctx, memEntry("a", []float32{1, 0})))

	all, err := vs.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Insertion order, not lexical.
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
	assert.Zero(t, all[0].Similarity)
}

func TestNew_UnsupportedBackend(t *testing.T) {
	_, err := store.New("postgres", t.TempDir(), 3)
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeStoreBackendUnsupported))
}

func TestNew_MemoryBackend(t *testing.T) {
	vs, err := store.New("memory", "", 3)
	require.NoError(t, err)
	defer func() { _ = vs.Close() }()

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNew_RejectsNonPositiveDimensions(t *testing.T) {
	_, err := store.New("memory", "", 0)
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeStoreVectorDimensionInvalid))
}

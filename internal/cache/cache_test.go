// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package cache_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/docsentry-dev/docsentry/internal/cache"
	"github.com/docsentry-dev/docsentry/internal/corpus"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder produces deterministic vectors and counts invocations.
type stubEmbedder struct {
	dims  int
	calls int
}

func (s *stubEmbedder) Name() string    { return "stub" }
func (s *stubEmbedder) Dimensions() int { return s.dims }

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	vec := make([]float32, s.dims)
	for i := range vec {
		vec[i] = float32(len(text)+i) / 100
	}
	return vec, nil
}

type failingEmbedder struct{ stubEmbedder }

func (f *failingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return nil, fmt.Errorf("model unavailable")
}

func testChunk(id string) corpus.Chunk {
	return corpus.Chunk{
		ID:             id,
		Text:           "text of " + id,
		SourceDocument: "finance/report.md",
		Department:     "Finance",
		TokenCount:     4,
	}
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "chunks_with_embeddings.jsonl")
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{dims: 4}
	c, err := cache.Open(cachePath(t), emb)
	require.NoError(t, err)

	first, err := c.GetOrCompute(ctx, testChunk("c1"))
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
	assert.Len(t, first.Embedding, 4)

	second, err := c.GetOrCompute(ctx, testChunk("c1"))
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls, "hit must not re-embed")
	assert.Equal(t, first, second, "hit returns the stored record bit-identically")
}

func TestHitIgnoresEditedText(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{dims: 4}
	c, err := cache.Open(cachePath(t), emb)
	require.NoError(t, err)

	original := testChunk("c1")
	cached, err := c.GetOrCompute(ctx, original)
	require.NoError(t, err)

	// Identity-keyed: an edited text under the same chunk_id still hits.
	edited := original
	edited.Text = "completely different text"
	rec, err := c.GetOrCompute(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, cached.Text, rec.Text)
	assert.Equal(t, cached.Embedding, rec.Embedding)
	assert.Equal(t, 1, emb.calls)
}

func TestFlushAndReload(t *testing.T) {
	ctx := context.Background()
	path := cachePath(t)

	emb := &stubEmbedder{dims: 4}
	c, err := cache.Open(path, emb)
	require.NoError(t, err)

	for i := range 10 {
		_, err := c.GetOrCompute(ctx, testChunk(fmt.Sprintf("c%02d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, c.Flush())
	assert.Equal(t, 10, c.Len())
	assert.Equal(t, 10, emb.calls)

	// Second run over the unchanged corpus: ten records, zero computations.
	emb2 := &stubEmbedder{dims: 4}
	c2, err := cache.Open(path, emb2)
	require.NoError(t, err)
	assert.Equal(t, 10, c2.Len())

	for i := range 10 {
		_, err := c2.GetOrCompute(ctx, testChunk(fmt.Sprintf("c%02d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, c2.Flush())
	assert.Equal(t, 0, emb2.calls, "unchanged corpus must not recompute")
	assert.Equal(t, 10, c2.Len())

	hits, misses := c2.Stats()
	assert.Equal(t, 10, hits)
	assert.Equal(t, 0, misses)
}

func TestReloadedEmbeddingsAreBitIdentical(t *testing.T) {
	ctx := context.Background()
	path := cachePath(t)

	emb := &stubEmbedder{dims: 3}
	c, err := cache.Open(path, emb)
	require.NoError(t, err)
	first, err := c.GetOrCompute(ctx, testChunk("c1"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	c2, err := cache.Open(path, &stubEmbedder{dims: 3})
	require.NoError(t, err)
	second, err := c2.GetOrCompute(ctx, testChunk("c1"))
	require.NoError(t, err)

	assert.Equal(t, first.Embedding, second.Embedding)
}

func TestEmbedFailureLeavesPriorRecordsValid(t *testing.T) {
	ctx := context.Background()
	path := cachePath(t)

	good := &stubEmbedder{dims: 4}
	c, err := cache.Open(path, good)
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, testChunk("ok"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	bad := &failingEmbedder{stubEmbedder{dims: 4}}
	c2, err := cache.Open(path, bad)
	require.NoError(t, err)

	// Prior record still hits without touching the broken embedder.
	_, err = c2.GetOrCompute(ctx, testChunk("ok"))
	require.NoError(t, err)
	assert.Equal(t, 0, bad.calls)

	// The failing chunk aborts, but flushed state is untouched.
	_, err = c2.GetOrCompute(ctx, testChunk("new"))
	require.Error(t, err)
	assert.Equal(t, dserr.CodeProviderUpstreamFailure, dserr.CodeOf(err))
	require.NoError(t, c2.Flush())

	c3, err := cache.Open(path, &stubEmbedder{dims: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, c3.Len())
}

func TestOpenRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := cachePath(t)

	c, err := cache.Open(path, &stubEmbedder{dims: 4})
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, testChunk("c1"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	// Reopening with a different dimensionality is fatal.
	_, err = cache.Open(path, &stubEmbedder{dims: 8})
	require.Error(t, err)
	assert.Equal(t, dserr.CodeCacheDimensionInvalid, dserr.CodeOf(err))
}

func TestOpenSkipsTornTrailingLine(t *testing.T) {
	ctx := context.Background()
	path := cachePath(t)

	c, err := cache.Open(path, &stubEmbedder{dims: 2})
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, testChunk("c1"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	// Simulate a crash mid-append.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"chunk_id":"c2","embedding":[0.1,`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c2, err := cache.Open(path, &stubEmbedder{dims: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, c2.Len())
}

func TestGetOrComputeRejectsInvalidChunk(t *testing.T) {
	c, err := cache.Open(cachePath(t), &stubEmbedder{dims: 2})
	require.NoError(t, err)

	_, err = c.GetOrCompute(context.Background(), corpus.Chunk{Text: "no id"})
	require.Error(t, err)
	assert.Equal(t, dserr.CodeCorpusChunkInvalid, dserr.CodeOf(err))
}

func TestFlushNothingPendingIsNoop(t *testing.T) {
	path := cachePath(t)
	c, err := cache.Open(path, &stubEmbedder{dims: 2})
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file should be created for an empty flush")
}

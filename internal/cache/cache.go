// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package cache persists chunk embeddings across indexing runs so
// re-indexing an unchanged corpus computes zero new embeddings.
//
// The cache is keyed by chunk identity (chunk_id), not by content hash: a
// chunk whose text was edited under a reused identifier keeps its stale
// embedding until the identifier changes. That trade-off is deliberate —
// identifiers are derived from source content upstream — and is covered by
// an explicit test rather than hidden.
package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docsentry-dev/docsentry/internal/corpus"
	"github.com/docsentry-dev/docsentry/internal/provider"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Record is one cached embedding. All chunk fields are duplicated so the
// cache file is portable on its own, without the chunk stream beside it.
type Record struct {
	ChunkID        string    `json:"chunk_id"`
	Text           string    `json:"text"`
	SourceDocument string    `json:"source_document"`
	Department     string    `json:"department"`
	TokenCount     int       `json:"token_count"`
	Embedding      []float32 `json:"embedding"`
}

// Cache is an identity-keyed embedding cache backed by an append-only JSONL
// file. It follows a single-writer model: one indexing batch mutates it at
// a time, with one Flush per batch.
type Cache struct {
	path       string
	embedder   provider.Embedder
	dimensions int

	records map[string]Record
	pending []Record
	hits    int
	misses  int
}

// Open loads the cache file at path, creating an empty cache if the file
// does not exist yet. Records whose embedding length differs from the
// configured dimensionality make the whole cache unusable — that means the
// corpus was embedded with a different model, which is a fatal
// configuration error, not something to paper over per record.
func Open(path string, embedder provider.Embedder) (*Cache, error) {
	c := &Cache{
		path:       path,
		embedder:   embedder,
		dimensions: embedder.Dimensions(),
		records:    make(map[string]Record),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, dserr.Errorf(dserr.CodeCacheLoadReadFailure, "opening embedding cache %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)
	line := 0
	skipped := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			// A torn final line from an interrupted flush must not brick
			// the cache; the record is simply recomputed next run.
			skipped++
			continue
		}
		if rec.ChunkID == "" {
			skipped++
			continue
		}
		if len(rec.Embedding) != c.dimensions {
			return nil, dserr.Errorf(dserr.CodeCacheDimensionInvalid,
				"embedding cache %s line %d: record %s has %d dimensions, configured model produces %d",
				path, line, rec.ChunkID, len(rec.Embedding), c.dimensions)
		}

		c.records[rec.ChunkID] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, dserr.Errorf(dserr.CodeCacheLoadReadFailure, "reading embedding cache %s: %w", path, err)
	}

	if skipped > 0 {
		slog.Warn("skipped malformed embedding cache records", "path", path, "count", skipped)
	}

	return c, nil
}

// GetOrCompute returns the cached record for chunk, computing and staging a
// new one on miss. A hit returns the stored record unchanged, even if the
// chunk text has drifted since it was cached (see the package comment).
// A failed embedding call stages nothing; records cached earlier in the
// batch stay valid.
func (c *Cache) GetOrCompute(ctx context.Context, chunk corpus.Chunk) (Record, error) {
	if err := chunk.Validate(); err != nil {
		return Record{}, err
	}

	if rec, ok := c.records[chunk.ID]; ok {
		c.hits++
		return rec, nil
	}

	embedding, err := c.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return Record{}, dserr.Wrap(err, dserr.CodeProviderUpstreamFailure,
			"embedding chunk", dserr.FieldChunkID(chunk.ID))
	}
	if len(embedding) != c.dimensions {
		return Record{}, dserr.Errorf(dserr.CodeCacheDimensionInvalid,
			"embedder returned %d dimensions for chunk %s, configured for %d",
			len(embedding), chunk.ID, c.dimensions)
	}

	rec := Record{
		ChunkID:        chunk.ID,
		Text:           chunk.Text,
		SourceDocument: chunk.SourceDocument,
		Department:     chunk.Department,
		TokenCount:     chunk.TokenCount,
		Embedding:      embedding,
	}
	c.records[chunk.ID] = rec
	c.pending = append(c.pending, rec)
	c.misses++

	return rec, nil
}

// Flush appends all staged records to the cache file in one write, called
// once at the end of a batch run. A crash before Flush loses only the
// unflushed records; already-flushed lines are never rewritten.
func (c *Cache) Flush() error {
	if len(c.pending) == 0 {
		return nil
	}

	var buf []byte
	for _, rec := range c.pending {
		line, err := json.Marshal(rec)
		if err != nil {
			return dserr.Errorf(dserr.CodeCacheFlushFailure, "encoding cache record %s: %w", rec.ChunkID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dserr.Errorf(dserr.CodeCacheFlushFailure, "creating cache directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return dserr.Errorf(dserr.CodeCacheFlushFailure, "opening embedding cache %s: %w", c.path, err)
	}

	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return dserr.Errorf(dserr.CodeCacheFlushFailure, "appending to embedding cache %s: %w", c.path, err)
	}
	if err := f.Close(); err != nil {
		return dserr.Errorf(dserr.CodeCacheFlushFailure, "closing embedding cache %s: %w", c.path, err)
	}

	slog.Info("flushed embedding cache", "path", c.path, "appended", len(c.pending), "total", len(c.records))
	c.pending = nil
	return nil
}

// Len returns the number of cached records, flushed or staged.
func (c *Cache) Len() int { return len(c.records) }

// Stats reports cache effectiveness for the current batch.
func (c *Cache) Stats() (hits, misses int) { return c.hits, c.misses }

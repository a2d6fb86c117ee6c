// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package pipeline wires the indexing and question-answering flows. The
// Indexer moves chunks through the embedding cache into the vector index
// with access roles stamped on; the Pipeline answers role-scoped questions.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/answer"
	"github.com/docsentry-dev/docsentry/internal/cache"
	"github.com/docsentry-dev/docsentry/internal/corpus"
	"github.com/docsentry-dev/docsentry/internal/retrieval"
	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Indexer ingests chunks: embed (or reuse a cached embedding), compute the
// access roles for the chunk's department, and upsert into the index.
type Indexer struct {
	cache  *cache.Cache
	policy *access.Policy
	index  store.VectorStore
	logger *slog.Logger
}

// NewIndexer creates an indexer over an open cache and index.
func NewIndexer(c *cache.Cache, policy *access.Policy, index store.VectorStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{cache: c, policy: policy, index: index, logger: logger}
}

// IndexChunk embeds one chunk and upserts it. Re-indexing the same chunk ID
// replaces the previous entry.
func (ix *Indexer) IndexChunk(ctx context.Context, chunk corpus.Chunk) error {
	record, err := ix.cache.GetOrCompute(ctx, chunk)
	if err != nil {
		return err
	}

	return ix.index.Upsert(ctx, store.Entry{
		ID:        record.ChunkID,
		Embedding: record.Embedding,
		Text:      record.Text,
		Metadata: store.Metadata{
			SourceDocument:  record.SourceDocument,
			Department:      record.Department,
			AccessibleRoles: ix.policy.AccessibleRoles(record.Department),
			TokenCount:      record.TokenCount,
		},
	})
}

// IndexAll indexes every chunk and flushes the cache once at the end. It
// returns the number of chunks indexed.
func (ix *Indexer) IndexAll(ctx context.Context, chunks []corpus.Chunk) (int, error) {
	for i, chunk := range chunks {
		if err := ix.IndexChunk(ctx, chunk); err != nil {
			// Flush what was embedded so far; partial progress survives.
			if ferr := ix.cache.Flush(); ferr != nil {
				ix.logger.Warn("flushing cache after index failure", "error", ferr)
			}
			return i, err
		}
	}
	if err := ix.cache.Flush(); err != nil {
		return len(chunks), err
	}

	hits, misses := ix.cache.Stats()
	ix.logger.Info("indexing complete",
		"chunks", len(chunks), "cache_hits", hits, "embedded", misses)
	return len(chunks), nil
}

// Pipeline answers questions for a role: validate the role, retrieve
// accessible passages, synthesize.
type Pipeline struct {
	policy      *access.Policy
	engine      *retrieval.Engine
	synthesizer *answer.Synthesizer
}

// NewPipeline creates the question-answering pipeline.
func NewPipeline(policy *access.Policy, engine *retrieval.Engine, synthesizer *answer.Synthesizer) *Pipeline {
	return &Pipeline{policy: policy, engine: engine, synthesizer: synthesizer}
}

// RetrieveAndAnswer answers query on behalf of role. Unknown roles are
// rejected before any provider call is made.
func (p *Pipeline) RetrieveAndAnswer(ctx context.Context, query, role string) (answer.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return answer.Answer{}, dserr.New(dserr.CodeServerRequestInvalid, "query must not be empty")
	}
	if !p.policy.IsKnownRole(role) {
		return answer.Answer{}, dserr.New(dserr.CodeAccessRoleUnknown,
			"unknown role", dserr.FieldRole(role))
	}

	passages, err := p.engine.Retrieve(ctx, query, role)
	if err != nil {
		return answer.Answer{}, err
	}

	return p.synthesizer.Synthesize(ctx, query, passages)
}

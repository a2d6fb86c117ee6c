// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package retrieval implements role-filtered nearest-neighbor search over the
// vector index. The index holds chunks for every role; filtering happens
// after the similarity search, so the engine over-fetches and widens until it
// has enough accessible hits or the index is exhausted.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/config"
	"github.com/docsentry-dev/docsentry/internal/provider"
	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Engine embeds queries and searches the index on behalf of a single role.
type Engine struct {
	embedder provider.Embedder
	index    store.VectorStore
	topK     int
	expand   int
	logger   *slog.Logger
}

// NewEngine creates a retrieval engine. The embedder may be lazy; it is not
// touched until Retrieve is called. The expansion factor is clamped to at
// least 1 so the widening loop always makes progress.
func NewEngine(embedder provider.Embedder, index store.VectorStore, cfg config.RetrievalConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	expand := cfg.ExpansionFactor
	if expand < 1 {
		expand = 1
	}
	return &Engine{
		embedder: embedder,
		index:    index,
		topK:     cfg.TopK,
		expand:   expand,
		logger:   logger,
	}
}

// Retrieve returns up to topK chunks accessible to role, ordered by
// descending similarity. An empty result is not an error. The role filter is
// a containment check against the roles stamped on each entry at index time,
// so a chunk never reaches a role the indexer did not grant.
func (e *Engine) Retrieve(ctx context.Context, query, role string) ([]store.Result, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeRetrievalEmbedFailure, "embedding query")
	}

	total, err := e.index.Count(ctx)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeRetrievalSearchFailure, "counting index entries")
	}
	if total == 0 {
		return nil, nil
	}

	// Over-fetch so role filtering still leaves topK hits, doubling until
	// enough accessible results turn up or the fetch covers the whole index.
	fetch := e.topK * e.expand
	for {
		if fetch > total {
			fetch = total
		}

		raw, err := e.index.Search(ctx, embedding, fetch)
		if err != nil {
			return nil, dserr.Wrap(err, dserr.CodeRetrievalSearchFailure, "searching index")
		}

		accessible := filterByRole(raw, role)
		if len(accessible) >= e.topK || fetch >= total {
			if len(accessible) > e.topK {
				accessible = accessible[:e.topK]
			}
			e.logger.Debug("retrieval complete",
				"role", role,
				"fetched", len(raw),
				"accessible", len(accessible),
			)
			return accessible, nil
		}

		fetch *= 2
	}
}

// filterByRole keeps results whose accessible-roles metadata contains role,
// preserving similarity order.
func filterByRole(results []store.Result, role string) []store.Result {
	out := make([]store.Result, 0, len(results))
	for _, r := range results {
		if access.RoleMatches(role, r.Metadata.AccessibleRoles) {
			out = append(out, r)
		}
	}
	return out
}

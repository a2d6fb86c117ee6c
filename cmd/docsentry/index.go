// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/cache"
	"github.com/docsentry-dev/docsentry/internal/corpus"
	"github.com/docsentry-dev/docsentry/internal/ingest"
	"github.com/docsentry-dev/docsentry/internal/pipeline"
	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [chunks.jsonl]",
		Short: "Embed and index the document corpus",
		Long: `Read chunked documents from a JSONL file, embed each chunk (reusing the
persistent embedding cache where possible), stamp access roles from the
department mapping, and upsert everything into the vector index.

Re-running is safe: cached embeddings are not recomputed and re-indexed
chunk IDs replace their previous entries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIndex,
	}

	cmd.Flags().Bool("clean", false, "normalize chunk text before embedding")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	chunksPath := cfg.Corpus.ChunksPath
	if len(args) == 1 {
		chunksPath = args[0]
	}

	chunks, err := corpus.ReadFile(chunksPath)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return dserr.Errorf(dserr.CodeCLIInputInvalid, "no chunks found in %s", chunksPath)
	}

	clean, _ := cmd.Flags().GetBool("clean")
	for i := range chunks {
		if clean {
			chunks[i].Text = ingest.CleanText(chunks[i].Text)
		}
		// Chunks without an ID get a deterministic one so re-ingesting the
		// same content reuses the same cache and index entries.
		if chunks[i].ID == "" {
			chunks[i].ID = fallbackChunkID(chunks[i])
		}
	}

	// Fill in missing departments from the source-path mapping, when one is
	// configured. Chunks that already carry a department keep it.
	if mappingPath := cfg.Corpus.RoleMapping; mappingPath != "" {
		mapping, merr := ingest.LoadRoleMapping(mappingPath)
		switch {
		case merr == nil:
			for i := range chunks {
				if chunks[i].Department == "" {
					chunks[i].Department = mapping.InferDepartment(chunks[i].SourceDocument)
				}
			}
		case errors.Is(merr, os.ErrNotExist):
			slog.Debug("no role mapping file, keeping chunk departments as-is", "path", mappingPath)
		default:
			return merr
		}
	}

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return dserr.Errorf(dserr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	embedder := newEmbedder(cfg)

	cachePath := cfg.Corpus.CachePath
	if cachePath == "" {
		cachePath = filepath.Join(dataDir, "embeddings.jsonl")
	}
	embCache, err := cache.Open(cachePath, embedder)
	if err != nil {
		return err
	}

	index, err := store.New(cfg.Storage.Backend, dataDir, cfg.Embedding.Dimensions)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	policy := access.NewPolicy(cfg.Access)
	indexer := pipeline.NewIndexer(embCache, policy, index, slog.Default())

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Indexing %d chunks from %s\n", len(chunks), chunksPath)

	n, err := indexer.IndexAll(cmd.Context(), chunks)
	if err != nil {
		return fmt.Errorf("indexed %d of %d chunks: %w", n, len(chunks), err)
	}

	hits, misses := embCache.Stats()
	_, _ = fmt.Fprintf(out, "Indexed %d chunks (%d embeddings reused from cache, %d computed)\n", n, hits, misses)
	return nil
}

// fallbackChunkID derives a stable ID from the chunk's source and content.
func fallbackChunkID(c corpus.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(c.SourceDocument+"\x00"+c.Text)).String()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package corpus defines the unit of retrieval and readers for the cleaned
// chunk stream produced by the ingestion stage.
package corpus

import (
	"strings"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Chunk is a bounded span of source-document text, the unit of retrieval.
//
// ID is assigned by the ingestion stage and is immutable: re-ingesting the
// same source content must reuse the same ID, or the embedding cache loses
// its effectiveness.
type Chunk struct {
	ID             string `json:"chunk_id"`
	Text           string `json:"text"`
	SourceDocument string `json:"source_document"`
	Department     string `json:"department"`
	TokenCount     int    `json:"token_count"`
}

// Validate checks the invariants every chunk must satisfy before it can be
// embedded or indexed.
func (c Chunk) Validate() error {
	if c.ID == "" {
		return dserr.New(dserr.CodeCorpusChunkInvalid, "chunk: chunk_id must not be empty")
	}
	if strings.TrimSpace(c.Text) == "" {
		return dserr.New(dserr.CodeCorpusChunkInvalid, "chunk: text must not be empty", dserr.FieldChunkID(c.ID))
	}
	return nil
}

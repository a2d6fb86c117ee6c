// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package ingest prepares raw document text for chunking: normalization and
// department inference from the source path. The heavy lifting (document
// acquisition, chunk splitting) happens upstream; this package covers the
// last cleaning mile so re-ingested content stays byte-stable and cacheable.
package ingest

import (
	"regexp"
	"strings"
)

var (
	whitespaceRE  = regexp.MustCompile(`\s+`)
	nonPrintableRE = regexp.MustCompile(`[^\x20-\x7E]`)
	junkSymbolRE  = regexp.MustCompile("[/\\\\|*~`@#$%^&_=+\\[\\]{}<>]")
	punctRunRE    = regexp.MustCompile(`([!?.,\-]){2,}`)
	htmlEntityRE  = regexp.MustCompile(`&[a-z]+;`)
)

// CleanText normalizes raw document text: collapses whitespace, strips
// non-ASCII and junk symbols, deduplicates punctuation runs, and removes
// leftover HTML entities. Sentence punctuation is preserved.
//
// The function is deterministic; running it twice yields the same output,
// which keeps chunk identifiers stable across re-ingestion.
func CleanText(text string) string {
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = nonPrintableRE.ReplaceAllString(text, " ")
	// Entities go before the junk pass; stripping "&" first would leave
	// the entity bodies behind as stray words.
	text = htmlEntityRE.ReplaceAllString(text, " ")
	text = junkSymbolRE.ReplaceAllString(text, " ")
	text = punctRunRE.ReplaceAllString(text, "$1")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

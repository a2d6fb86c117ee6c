// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package corpus_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docsentry-dev/docsentry/internal/corpus"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = `{"chunk_id":"finance_q4_0001","text":"Q4 revenue grew 12% year over year.","source_document":"finance/q4_report.md","department":"Finance","token_count":9}
{"chunk_id":"hr_handbook_0003","text":"Maternity leave applications go through the HR portal.","source_document":"general/handbook.md","department":"general","token_count":10}
`

func TestReadAll(t *testing.T) {
	chunks, err := corpus.ReadAll(strings.NewReader(sampleStream))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "finance_q4_0001", chunks[0].ID)
	assert.Equal(t, "Finance", chunks[0].Department)
	assert.Equal(t, 9, chunks[0].TokenCount)
	assert.Equal(t, "general/handbook.md", chunks[1].SourceDocument)
}

func TestReadAllSkipsBlankLines(t *testing.T) {
	stream := "\n" + sampleStream + "\n\n"
	chunks, err := corpus.ReadAll(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestReadAllRejectsMalformedLine(t *testing.T) {
	_, err := corpus.ReadAll(strings.NewReader(`{"chunk_id": "a", "text": "ok"}` + "\nnot json\n"))
	require.Error(t, err)
	assert.Equal(t, dserr.CodeCorpusStreamReadFailure, dserr.CodeOf(err))
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadAllRejectsInvalidChunk(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing id", `{"text":"hello","department":"finance"}`},
		{"empty text", `{"chunk_id":"c1","text":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := corpus.ReadAll(strings.NewReader(tt.line + "\n"))
			require.Error(t, err)
			assert.Equal(t, dserr.CodeCorpusStreamReadFailure, dserr.CodeOf(err))
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleStream), 0o600))

	chunks, err := corpus.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestReadFileMissing(t *testing.T) {
	_, err := corpus.ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.True(t, dserr.IsNotFound(err))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package corpus

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// maxLineBytes bounds a single JSONL record; chunks are small spans of text,
// so 1 MiB leaves generous headroom.
const maxLineBytes = 1 << 20

// ReadAll decodes a line-delimited JSON chunk stream. Blank lines are
// skipped; a malformed line aborts the read with its line number.
func ReadAll(r io.Reader) ([]Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var chunks []Chunk
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var c Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, dserr.Errorf(dserr.CodeCorpusStreamReadFailure,
				"decoding chunk stream line %d: %w", line, err)
		}
		if err := c.Validate(); err != nil {
			return nil, dserr.Wrapf(err, dserr.CodeCorpusStreamReadFailure,
				"chunk stream line %d", line)
		}

		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, dserr.Errorf(dserr.CodeCorpusStreamReadFailure, "reading chunk stream: %w", err)
	}

	return chunks, nil
}

// ReadFile loads a chunk stream from a JSONL file on disk. A missing corpus
// file is a configuration error per the error taxonomy, not a soft miss.
func ReadFile(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserr.Errorf(dserr.CodeCorpusFileNotFound, "chunk stream %s does not exist", path)
		}
		return nil, dserr.Errorf(dserr.CodeCorpusStreamReadFailure, "opening chunk stream %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	chunks, err := ReadAll(f)
	if err != nil {
		return nil, dserr.With(err, dserr.Field("path", path))
	}
	return chunks, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package audit appends one line per answered question to a plain-text log,
// recording who asked what and how confident the answer was.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Log is an append-only access log. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewLog creates a log writing to path. The file is created on first write.
func NewLog(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Record appends one entry. The query is quoted so log lines stay parseable
// when queries contain spaces.
func (l *Log) Record(user, role, query string, confidence float64) error {
	line := fmt.Sprintf("%s %s %s %s %.2f\n",
		l.now().Format("2006-01-02 15:04:05"),
		user,
		role,
		strconv.Quote(query),
		confidence,
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return dserr.Wrap(err, dserr.CodeAuditWriteFailure, "creating audit log directory")
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeAuditWriteFailure, "opening audit log")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(line); err != nil {
		return dserr.Wrap(err, dserr.CodeAuditWriteFailure, "appending audit entry")
	}
	return nil
}

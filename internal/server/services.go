// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package server

import (
	"context"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/answer"
	"github.com/docsentry-dev/docsentry/internal/auth"
	"github.com/docsentry-dev/docsentry/internal/store"
)

// QuestionAnswerer answers a query on behalf of a role.
type QuestionAnswerer interface {
	RetrieveAndAnswer(ctx context.Context, query, role string) (answer.Answer, error)
}

// AuditRecorder appends one access-log entry per answered question.
type AuditRecorder interface {
	Record(user, role, query string, confidence float64) error
}

// TokenAuthority issues and verifies bearer tokens.
type TokenAuthority interface {
	Issue(user *auth.User) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// Services groups the dependencies the HTTP handlers need.
type Services struct {
	Pipeline QuestionAnswerer
	Users    *auth.Service
	Tokens   TokenAuthority
	Policy   *access.Policy
	Index    store.VectorStore
	Audit    AuditRecorder
}

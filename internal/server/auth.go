// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docsentry-dev/docsentry/internal/auth"
)

type claimsContextKey struct{}

// metadataPublic marks an operation as reachable without a bearer token.
const metadataPublic = "public"

// claimsFromContext returns the verified token claims for the request.
func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims, ok
}

// authMiddleware verifies the bearer token on every operation not marked
// public and stores the claims in the request context.
func (s *Server) authMiddleware(ctx huma.Context, next func(huma.Context)) {
	if op := ctx.Operation(); op != nil && op.Metadata[metadataPublic] == true {
		next(ctx)
		return
	}

	header := ctx.Header("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "missing bearer token")
		return
	}

	claims, err := s.services.Tokens.Verify(token)
	if err != nil {
		slog.Debug("rejecting request with invalid token", "error", err)
		_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	next(huma.WithValue(ctx, claimsContextKey{}, claims))
}

// requireAdmin returns the claims if the caller holds the top role.
func (s *Server) requireAdmin(ctx context.Context) (*auth.Claims, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing bearer token")
	}
	if !strings.EqualFold(claims.Role, s.services.Policy.TopRole()) {
		return nil, huma.Error403Forbidden("administrator role required")
	}
	return claims, nil
}

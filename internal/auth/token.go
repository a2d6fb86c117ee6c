// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/docsentry-dev/docsentry/internal/config"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Claims are the JWT claims carried by docsentry bearer tokens. The role is
// baked into the token, so every request is scoped without a user lookup.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager from config.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.TokenSecret == "" {
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue,
			"auth.token_secret must not be empty")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.TokenSecret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for user, expiring after the configured TTL.
func (tm *TokenManager) Issue(user *User) (string, error) {
	now := tm.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", dserr.Wrap(err, dserr.CodeAuthTokenSignFailure, "signing token")
	}
	return signed, nil
}

// Verify parses and validates a token string, rejecting unexpected signing
// methods, bad signatures and expired tokens.
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, dserr.Errorf(dserr.CodeAuthTokenInvalid,
					"unexpected signing method %q", t.Header["alg"])
			}
			return tm.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return tm.now() }),
	)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeAuthTokenInvalid, "invalid token")
	}
	if !token.Valid || claims.Subject == "" || claims.Role == "" {
		return nil, dserr.New(dserr.CodeAuthTokenInvalid, "invalid token")
	}
	return claims, nil
}

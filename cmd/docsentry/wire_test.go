// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"context"
	"testing"
	"time"

	"github.com/docsentry-dev/docsentry/internal/auth"
	"github.com/docsentry-dev/docsentry/internal/config"
	"github.com/docsentry-dev/docsentry/internal/provider"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWireConfig() *config.Config {
	return &config.Config{
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:0"},
		Storage:    config.StorageConfig{Backend: "memory"},
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test"},
		},
		Embedding:  config.EmbeddingConfig{Model: "openai/text-embedding-3-small", Dimensions: 8},
		Generation: config.GenerationConfig{Model: "openai/gpt-4.1-mini", MaxOutputTokens: 64, MaxPromptBytes: 4096},
		Retrieval:  config.RetrievalConfig{TopK: 3, ExpansionFactor: 4, ScoreFloor: 0.2},
		Access: config.AccessConfig{
			Roles:             []string{"employees", "finance", "c-level"},
			TopRole:           "c-level",
			GeneralDepartment: "general",
		},
		Auth: config.AuthConfig{TokenSecret: "wire-test-secret", TokenTTL: time.Hour},
	}
}

func TestWireApp_BuildsAllSubsystems(t *testing.T) {
	app, err := WireApp(testWireConfig(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Index)
	assert.NotNil(t, app.Users)
	assert.NotNil(t, app.Tokens)
	assert.NotNil(t, app.Policy)
	assert.NotNil(t, app.Pipeline)
	assert.NotNil(t, app.Audit)

	assert.Equal(t, "c-level", app.Policy.TopRole())
}

func TestWireApp_EphemeralTokenSecret(t *testing.T) {
	cfg := testWireConfig()
	cfg.Auth.TokenSecret = ""

	app, err := WireApp(cfg, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	// Tokens issued against the generated secret round-trip.
	token, err := app.Tokens.Issue(&auth.User{Username: "alice", Role: "finance"})
	require.NoError(t, err)

	claims, err := app.Tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "finance", claims.Role)
}

func TestWireApp_UnknownBackend(t *testing.T) {
	cfg := testWireConfig()
	cfg.Storage.Backend = "postgres"

	app, err := WireApp(cfg, t.TempDir())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.True(t, dserr.HasCode(err, dserr.CodeCLISetupFailure))
}

func TestWireApp_CloseIsIdempotentOnSubsystems(t *testing.T) {
	app, err := WireApp(testWireConfig(), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, app.Close())
}

func TestNewEmbedder_UnknownProviderFailsLazily(t *testing.T) {
	cfg := testWireConfig()
	cfg.Embedding.Model = "mistral/embed-large"

	embedder := newEmbedder(cfg)
	require.NotNil(t, embedder, "construction must not fail before first use")

	_, err := embedder.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeProviderNotFound))
}

func TestNewEmbedder_MissingKeyFailsLazily(t *testing.T) {
	cfg := testWireConfig()
	cfg.Providers = nil

	embedder := newEmbedder(cfg)
	_, err := embedder.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestNewGenerator_UnknownProviderFailsLazily(t *testing.T) {
	cfg := testWireConfig()
	cfg.Generation.Model = "mistral/large"

	gen := newGenerator(cfg)
	require.NotNil(t, gen, "construction must not fail before first use")

	_, err := gen.Generate(context.Background(), provider.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeProviderNotFound))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/answer"
	"github.com/docsentry-dev/docsentry/internal/audit"
	"github.com/docsentry-dev/docsentry/internal/auth"
	"github.com/docsentry-dev/docsentry/internal/config"
	"github.com/docsentry-dev/docsentry/internal/pipeline"
	"github.com/docsentry-dev/docsentry/internal/provider"
	anthropicprov "github.com/docsentry-dev/docsentry/internal/provider/anthropic"
	googleprov "github.com/docsentry-dev/docsentry/internal/provider/google"
	openaiprov "github.com/docsentry-dev/docsentry/internal/provider/openai"
	"github.com/docsentry-dev/docsentry/internal/retrieval"
	"github.com/docsentry-dev/docsentry/internal/secrets"
	"github.com/docsentry-dev/docsentry/internal/server"
	"github.com/docsentry-dev/docsentry/internal/store"
	_ "github.com/docsentry-dev/docsentry/internal/store/sqlite" // register sqlite backend
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/spf13/viper"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server   *server.Server
	Index    store.VectorStore
	Users    *auth.Service
	Tokens   *auth.TokenManager
	Policy   *access.Policy
	Pipeline *pipeline.Pipeline
	Audit    *audit.Log
}

// loadConfig resolves keyring:// secrets in the global Viper and unmarshals
// the merged configuration. Flags and env vars bound by initViper are
// already applied.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	secrets.ResolveViperSecrets(v, secrets.NewKeyringStore())
	return config.LoadFromViper(v)
}

// resolveDataDir returns the configured data directory or the per-user default.
func resolveDataDir(cfg *config.Config) (string, error) {
	if cfg.Storage.DataDir != "" {
		return cfg.Storage.DataDir, nil
	}
	return config.DefaultDataDir()
}

// newEmbedder returns a lazy Embedder for the configured embedding model.
// The SDK client is not built (and the API key not required) until the
// first Embed call, so commands that never embed work without credentials.
func newEmbedder(cfg *config.Config) provider.Embedder {
	model := cfg.Embedding.Model
	dims := cfg.Embedding.Dimensions
	pc := cfg.Providers[config.ProviderFromModel(model)]

	return provider.NewLazyEmbedder(dims, func() (provider.Embedder, error) {
		name := config.ProviderFromModel(model)
		switch provider.ProviderName(name) {
		case provider.ProviderOpenAI:
			return openaiprov.NewEmbedder(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint}, config.ModelName(model), dims)
		case provider.ProviderGoogle:
			return googleprov.NewEmbedder(googleprov.Config{APIKey: pc.APIKey}, config.ModelName(model), dims)
		default:
			return nil, dserr.Errorf(dserr.CodeProviderNotFound,
				"no embedding provider for model %q", model)
		}
	})
}

// newGenerator returns a lazy Generator for the configured generation model.
func newGenerator(cfg *config.Config) provider.Generator {
	model := cfg.Generation.Model
	pc := cfg.Providers[config.ProviderFromModel(model)]

	return provider.NewLazyGenerator(func() (provider.Generator, error) {
		name := config.ProviderFromModel(model)
		switch provider.ProviderName(name) {
		case provider.ProviderOpenAI:
			return openaiprov.NewGenerator(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint}, config.ModelName(model))
		case provider.ProviderAnthropic:
			return anthropicprov.NewGenerator(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint}, config.ModelName(model))
		case provider.ProviderGoogle:
			return googleprov.NewGenerator(googleprov.Config{APIKey: pc.APIKey}, config.ModelName(model))
		default:
			return nil, dserr.Errorf(dserr.CodeProviderNotFound,
				"no generation provider for model %q", model)
		}
	})
}

// WireApp creates all subsystems and wires them together. The dataDir is
// the root directory for all persistent state: the vector index, the user
// database, and the access log.
func WireApp(cfg *config.Config, dataDir string) (*App, error) {
	// Ensure the data directory exists.
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Vector index.
	index, err := store.New(cfg.Storage.Backend, dataDir, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "opening vector index: %w", err)
	}

	// 2. User database and token authority.
	users, err := auth.Open(filepath.Join(dataDir, "users.db"))
	if err != nil {
		_ = index.Close()
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "opening user database: %w", err)
	}

	authCfg := cfg.Auth
	if authCfg.TokenSecret == "" {
		secret, serr := randomHex(32)
		if serr != nil {
			_ = users.Close()
			_ = index.Close()
			return nil, serr
		}
		authCfg.TokenSecret = secret
		slog.Warn("auth.token_secret not configured; using an ephemeral secret, issued tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenManager(authCfg)
	if err != nil {
		_ = users.Close()
		_ = index.Close()
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "configuring token authority: %w", err)
	}

	// 3. Access policy and the question-answering pipeline. The embedder and
	// generator are lazy: provider credentials are only needed once the first
	// question arrives.
	policy := access.NewPolicy(cfg.Access)
	engine := retrieval.NewEngine(newEmbedder(cfg), index, cfg.Retrieval, slog.Default())
	synth := answer.NewSynthesizer(newGenerator(cfg), cfg.Generation, cfg.Retrieval.ScoreFloor, slog.Default())
	pipe := pipeline.NewPipeline(policy, engine, synth)

	// 4. Access log.
	auditLog := audit.NewLog(filepath.Join(dataDir, "access.log"))

	// 5. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr: cfg.Networking.Listen,
	})
	if err != nil {
		_ = users.Close()
		_ = index.Close()
		return nil, dserr.Errorf(dserr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(&server.Services{
		Pipeline: pipe,
		Users:    users,
		Tokens:   tokens,
		Policy:   policy,
		Index:    index,
		Audit:    auditLog,
	})

	return &App{
		Server:   srv,
		Index:    index,
		Users:    users,
		Tokens:   tokens,
		Policy:   policy,
		Pipeline: pipe,
		Audit:    auditLog,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	type closer interface{ Close() error }
	closers := []closer{a.Users, a.Index}

	var errs []error
	for _, c := range closers {
		if c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

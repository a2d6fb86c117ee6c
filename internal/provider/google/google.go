// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/docsentry-dev/docsentry/internal/provider"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Config holds Google Gemini client configuration.
type Config struct {
	APIKey string
}

// Compile-time interface checks.
var (
	_ provider.Embedder  = (*Embedder)(nil)
	_ provider.Generator = (*Generator)(nil)
)

func newClient(cfg Config) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid,
			"google: missing api_key in config", dserr.FieldProvider("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "google: creating client")
	}
	return client, nil
}

// Embedder implements provider.Embedder using the Gemini embedding API.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder bound to the given model and dimensionality.
func NewEmbedder(cfg Config, model string, dimensions int) (*Embedder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}, nil
}

func (e *Embedder) Name() string    { return "google" }
func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := int32(e.dimensions)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "google: embedding request")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, dserr.New(dserr.CodeProviderResponseInvalid,
			"google: embedding response contained no values", dserr.FieldProvider("google"))
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != e.dimensions {
		return nil, dserr.Errorf(dserr.CodeProviderResponseInvalid,
			"google: model %s returned %d dimensions, configured for %d",
			e.model, len(vec), e.dimensions)
	}

	return vec, nil
}

// Generator implements provider.Generator using the Gemini generation API.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator creates a Generator bound to the given model.
func NewGenerator(cfg Config, model string) (*Generator, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Name() string { return "google" }

func (g *Generator) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	var cfg *genai.GenerateContentConfig
	if req.MaxOutputTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(req.MaxOutputTokens)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "google: generation request")
	}

	return resp.Text(), nil
}

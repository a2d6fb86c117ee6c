// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/docsentry-dev/docsentry/internal/provider"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// Config holds OpenAI client configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Compile-time interface checks.
var (
	_ provider.Embedder  = (*Embedder)(nil)
	_ provider.Generator = (*Generator)(nil)
)

func newClient(cfg Config) (openaisdk.Client, error) {
	if cfg.APIKey == "" {
		return openaisdk.Client{}, dserr.New(dserr.CodeProviderRequestInvalid,
			"openai: missing api_key in config", dserr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return openaisdk.NewClient(opts...), nil
}

// Embedder implements provider.Embedder using the OpenAI Embeddings API.
type Embedder struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder bound to the given model and
// dimensionality. Returns an error if the API key is missing.
func NewEmbedder(cfg Config, model string, dimensions int) (*Embedder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}, nil
}

func (e *Embedder) Name() string    { return "openai" }
func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "openai: embedding request")
	}
	if len(resp.Data) == 0 {
		return nil, dserr.New(dserr.CodeProviderResponseInvalid,
			"openai: embedding response contained no data", dserr.FieldProvider("openai"))
	}

	raw := resp.Data[0].Embedding
	if len(raw) != e.dimensions {
		return nil, dserr.Errorf(dserr.CodeProviderResponseInvalid,
			"openai: model %s returned %d dimensions, configured for %d",
			e.model, len(raw), e.dimensions)
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Generator implements provider.Generator using the Chat Completions API.
type Generator struct {
	client openaisdk.Client
	model  string
}

// NewGenerator creates a Generator bound to the given chat model.
func NewGenerator(cfg Config, model string) (*Generator, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Name() string { return "openai" }

func (g *Generator) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(req.Prompt),
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxOutputTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "openai: completion request")
	}
	if len(resp.Choices) == 0 {
		return "", dserr.New(dserr.CodeProviderResponseInvalid,
			"openai: completion response contained no choices", dserr.FieldProvider("openai"))
	}

	return resp.Choices[0].Message.Content, nil
}

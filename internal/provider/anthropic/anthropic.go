// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package anthropic provides answer generation through the Anthropic
// Messages API. Anthropic exposes no embeddings endpoint, so this package
// implements only the Generator side.
package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/docsentry-dev/docsentry/internal/provider"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// defaultMaxTokens caps output when the request does not set a bound; the
// Messages API requires an explicit max_tokens value.
const defaultMaxTokens = 1024

// Config holds Anthropic client configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

// Compile-time interface check.
var _ provider.Generator = (*Generator)(nil)

// Generator implements provider.Generator using the Anthropic Messages API.
type Generator struct {
	client anthropicsdk.Client
	model  string
}

// NewGenerator creates a Generator bound to the given model. Returns an
// error if the API key is missing.
func NewGenerator(cfg Config, model string) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, dserr.New(dserr.CodeProviderRequestInvalid,
			"anthropic: missing api_key in config", dserr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Generator{client: anthropicsdk.NewClient(opts...), model: model}, nil
}

func (g *Generator) Name() string { return "anthropic" }

func (g *Generator) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	msg, err := g.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return "", dserr.Wrapf(err, dserr.CodeProviderUpstreamFailure, "anthropic: message request")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return sb.String(), nil
}

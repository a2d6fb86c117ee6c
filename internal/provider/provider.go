// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package provider defines the model primitives the pipeline orchestrates:
// an Embedder (text to fixed-length vector) and a Generator (prompt to
// text). Implementations live in subpackages, one per vendor SDK.
package provider

import "context"

// ProviderName identifies a supported model vendor.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderGoogle    ProviderName = "google"
)

// Embedder turns text into a fixed-length numeric vector.
//
// Every embedder instance is bound to one model; the corpus and all queries
// must go through the same model and dimensionality. Mixing models is a
// configuration error, never a runtime-recoverable condition.
type Embedder interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateRequest bounds a single generation call.
type GenerateRequest struct {
	Prompt          string
	MaxOutputTokens int
}

// Generator produces natural-language text from a prompt. Calls are
// synchronous; timeout policy belongs to the caller's context.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package provider

import "context"

// LazyEmbedder defers SDK client construction to the first Embed call while
// still answering Dimensions from configuration. The indexing batch and the
// query path share one instance, so the embedding model is loaded at most
// once per process.
type LazyEmbedder struct {
	dimensions int
	handle     *Lazy[Embedder]
}

// Compile-time interface check.
var _ Embedder = (*LazyEmbedder)(nil)

// NewLazyEmbedder wraps an Embedder constructor in a single-flight handle.
// The dimensionality is taken from configuration so it is available before
// (and without) initialization.
func NewLazyEmbedder(dimensions int, init func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{dimensions: dimensions, handle: NewLazy(init)}
}

func (l *LazyEmbedder) Name() string    { return "lazy" }
func (l *LazyEmbedder) Dimensions() int { return l.dimensions }

func (l *LazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := l.handle.Get()
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

// LazyGenerator defers Generator construction to the first Generate call.
// The empty-retrieval fast path never touches it, so a process that only
// ever answers "I don't know" never pays for the generation client.
type LazyGenerator struct {
	handle *Lazy[Generator]
}

// Compile-time interface check.
var _ Generator = (*LazyGenerator)(nil)

// NewLazyGenerator wraps a Generator constructor in a single-flight handle.
func NewLazyGenerator(init func() (Generator, error)) *LazyGenerator {
	return &LazyGenerator{handle: NewLazy(init)}
}

func (l *LazyGenerator) Name() string { return "lazy" }

func (l *LazyGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g, err := l.handle.Get()
	if err != nil {
		return "", err
	}
	return g.Generate(ctx, req)
}

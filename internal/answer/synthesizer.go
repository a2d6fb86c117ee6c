// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

// Package answer turns retrieved passages into a grounded natural-language
// answer with a confidence score and source attributions.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docsentry-dev/docsentry/internal/config"
	"github.com/docsentry-dev/docsentry/internal/provider"
	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// NoAnswerText is returned when no passage clears the score floor or the
// generator produces nothing usable.
const NoAnswerText = "I don't know"

// Answer is the synthesized response. Confidence is the top retrieval
// similarity in [0, 1]; it measures retrieval quality, not generation
// quality. Sources lists distinct source documents in similarity order.
type Answer struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// NoAnswer is the fallback when retrieval produced nothing usable. Sources is
// an empty slice, not nil, so the fallback serializes with "sources": [].
func NoAnswer() Answer {
	return Answer{Text: NoAnswerText, Confidence: 0.0, Sources: []string{}}
}

// Synthesizer prompts a generator with retrieved passages.
type Synthesizer struct {
	generator  provider.Generator
	maxTokens  int
	maxPrompt  int
	scoreFloor float64
	logger     *slog.Logger
}

// NewSynthesizer creates a synthesizer. The generator may be lazy; it is not
// touched until a prompt is actually sent.
func NewSynthesizer(generator provider.Generator, gen config.GenerationConfig, scoreFloor float64, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		generator:  generator,
		maxTokens:  gen.MaxOutputTokens,
		maxPrompt:  gen.MaxPromptBytes,
		scoreFloor: scoreFloor,
		logger:     logger,
	}
}

// Synthesize answers query from passages, which must arrive in descending
// similarity order. Passages below the score floor are dropped; if none
// survive, the generator is never called and NoAnswer is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, passages []store.Result) (Answer, error) {
	kept := make([]store.Result, 0, len(passages))
	for _, p := range passages {
		if p.Similarity >= s.scoreFloor {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		s.logger.Debug("no passages cleared score floor",
			"retrieved", len(passages), "floor", s.scoreFloor)
		return NoAnswer(), nil
	}

	prompt := s.buildPrompt(query, kept)

	text, err := s.generator.Generate(ctx, provider.GenerateRequest{
		Prompt:          prompt,
		MaxOutputTokens: s.maxTokens,
	})
	if err != nil {
		return Answer{}, dserr.Wrap(err, dserr.CodeAnswerGenerateFailure, "generating answer")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return NoAnswer(), nil
	}

	return Answer{
		Text:       text,
		Confidence: clamp01(kept[0].Similarity),
		Sources:    sourceDocuments(kept),
	}, nil
}

// buildPrompt renders the context block. When the rendered prompt exceeds the
// byte budget, whole passages are dropped lowest-similarity-first so the best
// evidence always survives.
func (s *Synthesizer) buildPrompt(query string, passages []store.Result) string {
	for len(passages) > 1 {
		prompt := renderPrompt(query, passages)
		if s.maxPrompt <= 0 || len(prompt) <= s.maxPrompt {
			return prompt
		}
		passages = passages[:len(passages)-1]
	}
	return renderPrompt(query, passages)
}

func renderPrompt(query string, passages []store.Result) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say you don't know.\n\n")
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, p.Metadata.SourceDocument, p.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

// sourceDocuments returns distinct source documents in passage order.
func sourceDocuments(passages []store.Result) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		doc := p.Metadata.SourceDocument
		if doc == "" || seen[doc] {
			continue
		}
		seen[doc] = true
		out = append(out, doc)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

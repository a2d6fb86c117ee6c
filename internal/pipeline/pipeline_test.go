// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/answer"
	"github.com/docsentry-dev/docsentry/internal/cache"
	"github.com/docsentry-dev/docsentry/internal/config"
	"github.com/docsentry-dev/docsentry/internal/corpus"
	"github.com/docsentry-dev/docsentry/internal/pipeline"
	"github.com/docsentry-dev/docsentry/internal/provider"
	"github.com/docsentry-dev/docsentry/internal/retrieval"
	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

// wordEmbedder maps known words to fixed unit vectors; unknown text embeds
// near the origin axis. Deterministic and call-counting.
type wordEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (w *wordEmbedder) Name() string    { return "stub" }
func (w *wordEmbedder) Dimensions() int { return 2 }

func (w *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	w.calls++
	if v, ok := w.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

type echoGenerator struct {
	reply string
	calls int
}

func (e *echoGenerator) Name() string { return "stub" }

func (e *echoGenerator) Generate(_ context.Context, _ provider.GenerateRequest) (string, error) {
	e.calls++
	return e.reply, nil
}

var testAccess = config.AccessConfig{
	Roles:             []string{"employees", "finance", "hr", "c-level"},
	TopRole:           "c-level",
	GeneralDepartment: "general",
}

func testChunks() []corpus.Chunk {
	return []corpus.Chunk{
		{ID: "fin-1", Text: "quarterly budget is 10M", SourceDocument: "budget.md", Department: "finance", TokenCount: 5},
		{ID: "hr-1", Text: "vacation policy allows 25 days", SourceDocument: "handbook.md", Department: "hr", TokenCount: 5},
		{ID: "gen-1", Text: "office opens at 9am", SourceDocument: "welcome.md", Department: "general", TokenCount: 4},
	}
}

type fixture struct {
	indexer  *pipeline.Indexer
	pipeline *pipeline.Pipeline
	embedder *wordEmbedder
	gen      *echoGenerator
	index    store.VectorStore
}

func newFixture(t *testing.T, cachePath string) *fixture {
	t.Helper()

	emb := &wordEmbedder{vectors: map[string][]float32{
		"quarterly budget is 10M":        {1, 0},
		"vacation policy allows 25 days": {0, 1},
		"office opens at 9am":            {0.5, 0.5},
		"what is the budget?":            {0.95, 0.05},
	}}
	gen := &echoGenerator{reply: "the budget is 10M"}

	c, err := cache.Open(cachePath, emb)
	require.NoError(t, err)

	policy := access.NewPolicy(testAccess)
	index := store.NewMemoryVectorStore(2)

	engine := retrieval.NewEngine(emb, index, config.RetrievalConfig{
		TopK: 3, ExpansionFactor: 2,
	}, nil)
	synth := answer.NewSynthesizer(gen, config.GenerationConfig{
		MaxOutputTokens: 128, MaxPromptBytes: 8192,
	}, 0.25, nil)

	return &fixture{
		indexer:  pipeline.NewIndexer(c, policy, index, nil),
		pipeline: pipeline.NewPipeline(policy, engine, synth),
		embedder: emb,
		gen:      gen,
		index:    index,
	}
}

func TestIndexAll_StampsAccessRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, filepath.Join(t.TempDir(), "cache.jsonl"))

	n, err := f.indexer.IndexAll(ctx, testChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := f.index.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	byID := map[string]store.Result{}
	for _, r := range all {
		byID[r.ID] = r
	}

	// Department chunks carry the department plus the top role; general
	// chunks carry every known role.
	assert.ElementsMatch(t, []string{"finance", "c-level"}, byID["fin-1"].Metadata.AccessibleRoles)
	assert.ElementsMatch(t, []string{"hr", "c-level"}, byID["hr-1"].Metadata.AccessibleRoles)
	assert.ElementsMatch(t, []string{"employees", "finance", "hr", "c-level"}, byID["gen-1"].Metadata.AccessibleRoles)
}

func TestRetrieveAndAnswer_RoleScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, filepath.Join(t.TempDir(), "cache.jsonl"))

	_, err := f.indexer.IndexAll(ctx, testChunks())
	require.NoError(t, err)

	got, err := f.pipeline.RetrieveAndAnswer(ctx, "what is the budget?", "finance")
	require.NoError(t, err)
	assert.Equal(t, "the budget is 10M", got.Text)
	assert.Greater(t, got.Confidence, 0.5)
	assert.Contains(t, got.Sources, "budget.md")
	assert.NotContains(t, got.Sources, "handbook.md")
}

func TestRetrieveAndAnswer_UnknownRoleRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, filepath.Join(t.TempDir(), "cache.jsonl"))

	_, err := f.indexer.IndexAll(ctx, testChunks())
	require.NoError(t, err)

	_, err = f.pipeline.RetrieveAndAnswer(ctx, "anything", "contractor")
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeAccessRoleUnknown))
	assert.Zero(t, f.gen.calls, "no provider call for an unknown role")
}

func TestRetrieveAndAnswer_EmptyQueryRejected(t *testing.T) {
	f := newFixture(t, filepath.Join(t.TempDir(), "cache.jsonl"))

	_, err := f.pipeline.RetrieveAndAnswer(context.Background(), "   ", "finance")
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeServerRequestInvalid))
}

func TestRetrieveAndAnswer_EmptyIndexSaysIDontKnow(t *testing.T) {
	f := newFixture(t, filepath.Join(t.TempDir(), "cache.jsonl"))

	got, err := f.pipeline.RetrieveAndAnswer(context.Background(), "what is the budget?", "finance")
	require.NoError(t, err)
	assert.Equal(t, answer.NoAnswerText, got.Text)
	assert.Zero(t, got.Confidence)
	assert.Empty(t, got.Sources)
	assert.Zero(t, f.gen.calls, "generator must not run without retrieved evidence")
}

func TestIndexAll_SecondRunUsesCache(t *testing.T) {
	ctx := context.Background()
	cachePath := filepath.Join(t.TempDir(), "cache.jsonl")

	first := newFixture(t, cachePath)
	_, err := first.indexer.IndexAll(ctx, testChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, first.embedder.calls)

	// A fresh process over the same cache file embeds nothing.
	second := newFixture(t, cachePath)
	_, err = second.indexer.IndexAll(ctx, testChunks())
	require.NoError(t, err)
	assert.Zero(t, second.embedder.calls)

	// The rebuilt index still answers.
	got, err := second.pipeline.RetrieveAndAnswer(ctx, "what is the budget?", "finance")
	require.NoError(t, err)
	assert.NotEqual(t, answer.NoAnswerText, got.Text)
}

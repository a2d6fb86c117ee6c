// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/answer"
	"github.com/docsentry-dev/docsentry/internal/audit"
	"github.com/docsentry-dev/docsentry/internal/pipeline"
	"github.com/docsentry-dev/docsentry/internal/retrieval"
	"github.com/docsentry-dev/docsentry/internal/store"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the local index",
		Long: `Answer a question directly against the local vector index, without going
through a running server. Retrieval is scoped to the role given with --role,
and the question is recorded in the access log like any server request.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().String("role", "", "role to answer as (required)")
	cmd.Flags().Bool("sources", false, "print source documents after the answer")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	role, _ := cmd.Flags().GetString("role")
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return dserr.New(dserr.CodeCLIInputInvalid, "question must not be empty")
	}

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}

	index, err := store.New(cfg.Storage.Backend, dataDir, cfg.Embedding.Dimensions)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	policy := access.NewPolicy(cfg.Access)
	engine := retrieval.NewEngine(newEmbedder(cfg), index, cfg.Retrieval, slog.Default())
	synth := answer.NewSynthesizer(newGenerator(cfg), cfg.Generation, cfg.Retrieval.ScoreFloor, slog.Default())
	pipe := pipeline.NewPipeline(policy, engine, synth)

	result, err := pipe.RetrieveAndAnswer(cmd.Context(), question, role)
	if err != nil {
		return err
	}

	// Local questions go to the same access log as server requests.
	auditLog := audit.NewLog(filepath.Join(dataDir, "access.log"))
	if aerr := auditLog.Record(localUser(), role, question, result.Confidence); aerr != nil {
		slog.Warn("recording access log entry", "error", aerr)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, result.Text)
	_, _ = fmt.Fprintf(out, "\nconfidence: %.2f\n", result.Confidence)

	if showSources, _ := cmd.Flags().GetBool("sources"); showSources && len(result.Sources) > 0 {
		_, _ = fmt.Fprintln(out, "sources:")
		for _, src := range result.Sources {
			_, _ = fmt.Fprintf(out, "  - %s\n", src)
		}
	}

	return nil
}

// localUser returns the OS username for access-log attribution, falling
// back to "cli" when it cannot be determined.
func localUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "cli"
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/docsentry-dev/docsentry/internal/config"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, configuration, provider credentials, the corpus file, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "127.0.0.1:8990", "server address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")

	cfg, cfgErr := loadConfig()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Server", func() string { return checkServer(addr) }},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Providers", func() string { return checkProviders(cfg) }},
		{"Corpus", func() string { return checkCorpus(cfg) }},
		{"Disk Space", func() string { return checkDiskSpace(cfg) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("docsentry %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkServer(addr string) string {
	client := newServerClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := client.getJSON("/health", &body); err != nil {
		if dserr.HasCode(err, dserr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'docsentry start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig(cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("invalid: %s", cfgErr)
	}
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

// checkProviders reports whether the configured embedding and generation
// models have API keys, without making network calls.
func checkProviders(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}

	report := func(kind, model string) string {
		name := config.ProviderFromModel(model)
		if cfg.Providers[name].APIKey == "" {
			return fmt.Sprintf("%s %s (no api_key for %q)", kind, model, name)
		}
		return fmt.Sprintf("%s %s (key set)", kind, model)
	}

	return report("embedding", cfg.Embedding.Model) + ", " + report("generation", cfg.Generation.Model)
}

func checkCorpus(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	fi, err := os.Stat(cfg.Corpus.ChunksPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("no chunks file at %s", cfg.Corpus.ChunksPath)
		}
		return fmt.Sprintf("error reading chunks file: %s", err)
	}
	return fmt.Sprintf("%s (%s)", cfg.Corpus.ChunksPath, formatBytes(uint64(fi.Size())))
}

func checkDiskSpace(cfg *config.Config) string {
	path := ""
	if cfg != nil {
		if dd, err := resolveDataDir(cfg); err == nil {
			path = dd
		}
	}
	if _, err := os.Stat(path); path == "" || os.IsNotExist(err) {
		// Fall back to home directory if data dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}

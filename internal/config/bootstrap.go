// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
)

//go:embed docsentry.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/docsentry/docsentry.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dserr.Errorf(dserr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "docsentry", "docsentry.yaml"), nil
}

// DefaultDataDir returns ~/.local/share/docsentry, the fallback location for
// the vector index, user database, embedding cache, and access log when
// storage.data_dir is not configured.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dserr.Errorf(dserr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "docsentry"), nil
}

// BootstrapConfig writes the default commented config to the standard path if
// it does not already exist. Returns the path written, or empty string if the
// file already existed or an error occurred (non-fatal, logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

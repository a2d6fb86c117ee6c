// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/docsentry-dev/docsentry/internal/provider"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Config generation tests ---

func TestGenerateConfigYAML(t *testing.T) {
	tests := []struct {
		name   string
		result initResult
		checks []string
	}{
		{
			name:   "openai provider",
			result: initResult{Provider: provider.ProviderOpenAI, APIKey: "sk-openai"},
			checks: []string{
				"keyring://docsentry/openai-api-key",
				"openai/text-embedding-3-small",
				"openai/gpt-4.1-mini",
				"dimensions: 1536",
				"keyring://docsentry/token-secret",
			},
		},
		{
			name:   "anthropic provider",
			result: initResult{Provider: provider.ProviderAnthropic, APIKey: "sk-ant-test"},
			checks: []string{
				"keyring://docsentry/anthropic-api-key",
				"anthropic/claude-sonnet-4-5",
				// Anthropic cannot embed; the config must carry an openai
				// provider slot for the embedding model.
				"openai/text-embedding-3-small",
				"openai:",
			},
		},
		{
			name:   "google provider",
			result: initResult{Provider: provider.ProviderGoogle, APIKey: "AIza..."},
			checks: []string{
				"keyring://docsentry/google-api-key",
				"google/text-embedding-004",
				"google/gemini-2.0-flash",
				"dimensions: 768",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := GenerateConfigYAML(tt.result)
			for _, check := range tt.checks {
				assert.Contains(t, yaml, check, "YAML missing expected content: %q", check)
			}
			// API key itself must NOT appear in plain text.
			assert.NotContains(t, yaml, tt.result.APIKey, "plain-text API key must not appear in YAML")
		})
	}
}

func TestGenerateConfigYAML_ContainsRequiredSections(t *testing.T) {
	yaml := GenerateConfigYAML(initResult{Provider: provider.ProviderOpenAI, APIKey: "sk"})

	for _, section := range []string{"networking:", "storage:", "providers:", "embedding:", "generation:", "auth:"} {
		assert.Contains(t, yaml, section, "missing section: %s", section)
	}
}

func TestDefaultModelsForProvider(t *testing.T) {
	tests := []struct {
		provider       ProviderType
		wantEmbedding  string
		wantGeneration string
		wantDims       int
	}{
		{provider.ProviderOpenAI, "openai/text-embedding-3-small", "openai/gpt-4.1-mini", 1536},
		{provider.ProviderAnthropic, "openai/text-embedding-3-small", "anthropic/claude-sonnet-4-5", 1536},
		{provider.ProviderGoogle, "google/text-embedding-004", "google/gemini-2.0-flash", 768},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			embedding, generation, dims := defaultModelsForProvider(tt.provider)
			assert.Equal(t, tt.wantEmbedding, embedding)
			assert.Equal(t, tt.wantGeneration, generation)
			assert.Equal(t, tt.wantDims, dims)
		})
	}
}

// --- bubbletea model state transition tests ---

func TestInitModel_ProviderSelection(t *testing.T) {
	m := newInitModel(nil)
	assert.Equal(t, stepProvider, m.step)
	assert.Equal(t, 0, m.providerIdx)

	// Navigate down twice.
	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m3, _ := m2.(initModel).Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m3.(initModel).providerIdx)

	// Navigate up once.
	m4, _ := m3.(initModel).Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m4.(initModel).providerIdx)

	// Can't go above 0.
	m5, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m5.(initModel).providerIdx)

	// Can't go below max.
	mMax := m
	mMax.providerIdx = len(supportedProviders) - 1
	m6, _ := mMax.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, len(supportedProviders)-1, m6.(initModel).providerIdx)
}

func TestInitModel_SelectProvider_TransitionsToAPIKey(t *testing.T) {
	m := newInitModel(nil)
	m.providerIdx = 1 // anthropic

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := m2.(initModel)
	assert.Equal(t, stepAPIKey, result.step)
	assert.Equal(t, provider.ProviderAnthropic, result.result.Provider)
}

func TestInitModel_EmptyAPIKey_ShowsError(t *testing.T) {
	m := newInitModel(nil)
	m.step = stepAPIKey
	m.result.Provider = provider.ProviderOpenAI
	// Don't set any value in apiKeyInput.

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := m2.(initModel)
	assert.Equal(t, stepAPIKey, result.step)
	assert.NotEmpty(t, result.validationErr)
}

func TestInitModel_ValidationError_ResetsToInput(t *testing.T) {
	m := newInitModel(nil)
	m.step = stepValidateKey

	m2, _ := m.Update(validationErrorMsg{
		err: dserr.New(dserr.CodeProviderKeyInvalid, "bad key"),
	})
	result := m2.(initModel)
	assert.Equal(t, stepAPIKey, result.step)
	assert.Contains(t, result.validationErr, "bad key")
}

func TestInitModel_ValidationSuccess_WritesConfig(t *testing.T) {
	m := newInitModel(newMockSecretStore())
	m.step = stepValidateKey
	m.result.Provider = provider.ProviderOpenAI

	_, cmd := m.Update(validationSuccessMsg{})
	// A command should be returned (writeConfigCmd).
	assert.NotNil(t, cmd)
}

func TestInitModel_ConfigWritten_TransitionsToDone(t *testing.T) {
	m := newInitModel(nil)
	m.step = stepValidateKey

	m2, _ := m.Update(configWrittenMsg{path: "/tmp/docsentry.yaml"})
	fm := m2.(initModel)
	assert.Equal(t, stepDone, fm.step)
	assert.Equal(t, "/tmp/docsentry.yaml", fm.configPath)
}

func TestInitModel_View_ContainsExpectedContent(t *testing.T) {
	tests := []struct {
		name string
		step initWizardStep
		want []string
	}{
		{
			name: "provider step",
			step: stepProvider,
			want: []string{"provider", "openai", "anthropic", "google"},
		},
		{
			name: "done step",
			step: stepDone,
			want: []string{"Setup complete", "docsentry index", "docsentry start", "docsentry doctor"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newInitModel(nil)
			m.step = tt.step
			view := m.View()
			for _, w := range tt.want {
				assert.Contains(t, view, w)
			}
		})
	}
}

// --- Config overwrite detection ---
// Tests below reuse mockSecretStore from secret_test.go (same package).

func TestStoreSecretAndWriteConfig_OverwriteProtection(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "docsentry.yaml")

	// Override configPathForWrite so it points to our temp dir.
	origFn := configPathForWrite
	configPathForWrite = func() (string, error) { return cfgPath, nil }
	t.Cleanup(func() { configPathForWrite = origFn })

	store := newMockSecretStore()
	result := initResult{Provider: provider.ProviderOpenAI, APIKey: "sk-test"}

	// First write should succeed.
	path, err := storeSecretAndWriteConfig(result, store, false)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)

	// Second write without force should fail.
	_, err = storeSecretAndWriteConfig(result, store, false)
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeConfigAlreadyExists))
	assert.Contains(t, err.Error(), "--force to overwrite")

	// Write with force should succeed.
	path, err = storeSecretAndWriteConfig(result, store, true)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)
}

func TestStoreSecretAndWriteConfig_StoresKeyAndTokenSecret(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "docsentry.yaml")

	origFn := configPathForWrite
	configPathForWrite = func() (string, error) { return cfgPath, nil }
	t.Cleanup(func() { configPathForWrite = origFn })

	store := newMockSecretStore()
	result := initResult{Provider: provider.ProviderGoogle, APIKey: "AIza-test"}

	_, err := storeSecretAndWriteConfig(result, store, false)
	require.NoError(t, err)

	// Provider key should be stored with the entered value.
	key, err := store.Retrieve("docsentry", "google-api-key")
	require.NoError(t, err)
	assert.Equal(t, "AIza-test", key)

	// A token-signing secret should be generated and stored.
	secret, err := store.Retrieve("docsentry", "token-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	// Neither secret may appear in the written config.
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AIza-test")
	assert.NotContains(t, string(data), secret)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/docsentry-dev/docsentry/internal/config"
	"github.com/docsentry-dev/docsentry/internal/provider"
	"github.com/docsentry-dev/docsentry/internal/secrets"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/spf13/cobra"
)

// initHTTPClient is the HTTP client used for provider key validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// ProviderType aliases provider.ProviderName for use in the init wizard.
type ProviderType = provider.ProviderName

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select provider
	stepAPIKey                            // enter API key
	stepValidateKey                       // validating key (spinner)
	stepDone                              // wizard complete
	stepError                             // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider ProviderType
	APIKey   string
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedProviders = []ProviderType{
	provider.ProviderOpenAI,
	provider.ProviderAnthropic,
	provider.ProviderGoogle,
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	apiKeyInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		providerIdx: 0,
		apiKeyInput: apiKey,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(supportedProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = supportedProviders[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(m.result.Provider, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.step == stepAPIKey {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Docsentry Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Pick a model provider") + "\n\n")
		for i, p := range supportedProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render(string(m.result.Provider)+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("docsentry index") + " to embed your corpus,\n")
		b.WriteString("then " + promptStyle.Render("docsentry start") + " to serve questions.\n")
		b.WriteString("Run " + promptStyle.Render("docsentry doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func validateProviderKeyCmd(p ProviderType, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation (exported for tests) ---

// GenerateConfigYAML produces a minimal docsentry.yaml from the wizard
// result. The API key and token secret are referenced via keyring:// URIs;
// the actual secrets are stored separately by storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) string {
	providerKey := fmt.Sprintf("keyring://%s/%s-api-key", secrets.Service, result.Provider)
	embedding, generation, dims := defaultModelsForProvider(result.Provider)

	var sb strings.Builder
	sb.WriteString("# Docsentry configuration — generated by docsentry init\n\n")

	sb.WriteString("networking:\n")
	sb.WriteString("  listen: \"127.0.0.1:8990\"\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n\n")

	sb.WriteString("providers:\n")
	sb.WriteString(fmt.Sprintf("  %s:\n", result.Provider))
	sb.WriteString(fmt.Sprintf("    api_key: \"%s\"\n", providerKey))
	if result.Provider == provider.ProviderAnthropic {
		// Anthropic has no embedding API; a second provider key is needed
		// before indexing.
		sb.WriteString(fmt.Sprintf("  %s:\n", config.ProviderFromModel(embedding)))
		sb.WriteString("    api_key: \"\"  # required for embedding; fill in or run init again\n")
	}
	sb.WriteString("\n")

	sb.WriteString("embedding:\n")
	sb.WriteString(fmt.Sprintf("  model: \"%s\"\n", embedding))
	sb.WriteString(fmt.Sprintf("  dimensions: %d\n\n", dims))

	sb.WriteString("generation:\n")
	sb.WriteString(fmt.Sprintf("  model: \"%s\"\n", generation))
	sb.WriteString("  max_output_tokens: 256\n\n")

	sb.WriteString("auth:\n")
	sb.WriteString(fmt.Sprintf("  token_secret: \"keyring://%s/token-secret\"\n", secrets.Service))

	return sb.String()
}

// defaultModelsForProvider returns the embedding model, generation model,
// and embedding dimensionality for a provider.
func defaultModelsForProvider(p ProviderType) (embedding, generation string, dims int) {
	switch p {
	case provider.ProviderAnthropic:
		// Embeddings fall back to OpenAI; Anthropic only generates.
		return "openai/text-embedding-3-small", "anthropic/claude-sonnet-4-5", 1536
	case provider.ProviderGoogle:
		return "google/text-embedding-004", "google/gemini-2.0-flash", 768
	default:
		return "openai/text-embedding-3-small", "openai/gpt-4.1-mini", 1536
	}
}

// storeSecretAndWriteConfig saves the API key and a fresh token-signing
// secret to the OS keyring and writes the config YAML to the default
// config path.
//
// When forceOverwrite is false and the config file already exists, an error
// is returned asking the user to pass --force. When forceOverwrite is true
// the entire config is overwritten (full re-init).
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	// Store provider API key.
	providerKeyName := string(result.Provider) + "-api-key"
	if err := store.Store(secrets.Service, providerKeyName, result.APIKey); err != nil {
		return "", dserr.Errorf(dserr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
	}

	// Generate and store the bearer-token signing secret.
	// NOTE: If config write fails below, secrets already stored in keyring are
	// not rolled back. This is acceptable — orphaned keyring entries are harmless
	// and will be overwritten on a successful re-run.
	tokenSecret, err := randomHex(32)
	if err != nil {
		return "", err
	}
	if err := store.Store(secrets.Service, "token-secret", tokenSecret); err != nil {
		return "", dserr.Errorf(dserr.CodeSecretStoreFailure, "storing token secret: %w", err)
	}

	// Write config file.
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	// Check for existing config unless --force is set.
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", dserr.Errorf(dserr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", dserr.Errorf(dserr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	yaml := GenerateConfigYAML(result)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		return "", dserr.Errorf(dserr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", dserr.Errorf(dserr.CodeCLISetupFailure, "generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// configPathForWrite returns the default config path. Exported as a
// variable so tests can override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for docsentry",
		Long: `Run an interactive TUI wizard that walks you through adding a model
provider (OpenAI, Anthropic, Google).

API keys are stored securely in the OS keyring and referenced via
keyring:// URIs in the config file. No secrets are written in plain text.

After completion, run:
  docsentry index    — embed and index your corpus
  docsentry start    — start the server
  docsentry doctor   — verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	// Check if stdin is a terminal — if not, refuse to run interactively.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"docsentry init requires an interactive terminal.\n"+
				"To configure docsentry non-interactively, edit ~/.config/docsentry/docsentry.yaml directly.")
		return dserr.New(dserr.CodeCLISetupFailure, "docsentry init: not an interactive terminal")
	}

	forceOverwrite, _ := cmd.Flags().GetBool("force")

	store := secretStoreFactory()
	m := newInitModel(store)
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return dserr.Errorf(dserr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return dserr.New(dserr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return dserr.Errorf(dserr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// If user quit early (not done), that's fine — just return.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

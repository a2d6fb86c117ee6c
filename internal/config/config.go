// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level docsentry configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Embedding  EmbeddingConfig           `mapstructure:"embedding"`
	Generation GenerationConfig          `mapstructure:"generation"`
	Retrieval  RetrievalConfig           `mapstructure:"retrieval"`
	Access     AccessConfig              `mapstructure:"access"`
	Auth       AuthConfig                `mapstructure:"auth"`
	Corpus     CorpusConfig              `mapstructure:"corpus"`
}

// NetworkingConfig controls how docsentry listens for connections.
type NetworkingConfig struct {
	Listen string `mapstructure:"listen"`
}

// StorageConfig selects the storage backend and its on-disk location.
// The data directory holds the vector index database, the user database,
// the embedding cache, and the access log.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// ProviderConfig holds credentials and endpoint for a model provider.
// APIKey values may use the keyring://service/key scheme; they are resolved
// after load by the secrets package.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// EmbeddingConfig selects the embedding model. Dimensions must match the
// model's output dimensionality; a corpus embedded with a different
// dimensionality is a fatal configuration error, not a runtime condition.
type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// GenerationConfig bounds the answer generation step.
type GenerationConfig struct {
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
	MaxPromptBytes  int    `mapstructure:"max_prompt_bytes"`
}

// RetrievalConfig controls similarity search and the access-filter
// over-fetch policy.
type RetrievalConfig struct {
	TopK            int     `mapstructure:"top_k"`
	ExpansionFactor int     `mapstructure:"expansion_factor"`
	ScoreFloor      float64 `mapstructure:"score_floor"`
}

// AccessConfig enumerates the known requester roles. GeneralDepartment is the
// sentinel department visible to every known role; TopRole sees everything.
type AccessConfig struct {
	Roles             []string `mapstructure:"roles"`
	TopRole           string   `mapstructure:"top_role"`
	GeneralDepartment string   `mapstructure:"general_department"`
}

// AuthConfig controls bearer-token issuance.
type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// CorpusConfig locates the ingestion inputs: the cleaned chunk stream,
// the persistent embedding cache, and the department role-mapping file.
type CorpusConfig struct {
	ChunksPath  string `mapstructure:"chunks_path"`
	CachePath   string `mapstructure:"cache_path"`
	RoleMapping string `mapstructure:"role_mapping"`
}

// SetDefaults applies docsentry's default configuration values to v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8990")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("embedding.model", "openai/text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("generation.model", "openai/gpt-4.1-mini")
	v.SetDefault("generation.max_output_tokens", 256)
	v.SetDefault("generation.max_prompt_bytes", 8192)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.expansion_factor", 4)
	v.SetDefault("retrieval.score_floor", 0.25)
	v.SetDefault("access.roles", []string{"employees", "finance", "hr", "marketing", "engineering", "c-level"})
	v.SetDefault("access.top_role", "c-level")
	v.SetDefault("access.general_department", "general")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("corpus.chunks_path", "data/processed/chunks.jsonl")
	v.SetDefault("corpus.cache_path", "data/processed/chunks_with_embeddings.jsonl")
	v.SetDefault("corpus.role_mapping", "config/role_mapping.yaml")
}

// SetupEnv binds environment variables with the DOCSENTRY_ prefix, so
// e.g. DOCSENTRY_NETWORKING_LISTEN overrides networking.listen.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("DOCSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, dserr.Errorf(dserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper unmarshals and validates configuration from an already
// populated Viper instance. The CLI uses this after merging flags, env,
// and the config file into the global Viper.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dserr.Errorf(dserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found, collecting every issue rather than stopping at
// the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateAccess()...)
	errs = append(errs, c.validateAuth()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	errs = append(errs, c.validateModelRef("embedding.model", c.Embedding.Model)...)
	errs = append(errs, c.validateModelRef("generation.model", c.Generation.Model)...)

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be greater than 0, got %d",
			c.Embedding.Dimensions,
		))
	}

	if c.Generation.MaxOutputTokens <= 0 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: generation.max_output_tokens must be greater than 0, got %d",
			c.Generation.MaxOutputTokens,
		))
	}

	if c.Generation.MaxPromptBytes <= 0 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: generation.max_prompt_bytes must be greater than 0, got %d",
			c.Generation.MaxPromptBytes,
		))
	}

	return errs
}

func (c *Config) validateModelRef(key, ref string) []error {
	var errs []error

	if ref == "" {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "config: %s must not be empty", key))
		return errs
	}

	if !strings.Contains(ref, "/") {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: %s must be in \"provider/model\" format, got %q", key, ref))
		return errs
	}

	// Only cross-reference providers when the providers section exists in
	// config. A nil map means no providers section was configured (e.g.,
	// defaults only on a fresh install), which is valid.
	if c.Providers != nil {
		name := ProviderFromModel(ref)
		if _, ok := c.Providers[name]; !ok {
			errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
				"config: %s %q references provider %q which is not configured",
				key, ref, name,
			))
		}
	}

	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: retrieval.top_k must be greater than 0, got %d", c.Retrieval.TopK))
	}

	if c.Retrieval.ExpansionFactor < 1 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: retrieval.expansion_factor must be at least 1, got %d", c.Retrieval.ExpansionFactor))
	}

	if c.Retrieval.ScoreFloor < 0 || c.Retrieval.ScoreFloor > 1 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: retrieval.score_floor must be in [0, 1], got %g", c.Retrieval.ScoreFloor))
	}

	return errs
}

func (c *Config) validateAccess() []error {
	var errs []error

	if len(c.Access.Roles) == 0 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "config: access.roles must not be empty"))
		return errs
	}

	if c.Access.TopRole == "" {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "config: access.top_role must not be empty"))
		return errs
	}

	found := false
	for _, role := range c.Access.Roles {
		if strings.EqualFold(role, c.Access.TopRole) {
			found = true
			break
		}
	}
	if !found {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: access.top_role %q must be a member of access.roles", c.Access.TopRole))
	}

	if c.Access.GeneralDepartment == "" {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue, "config: access.general_department must not be empty"))
	}

	return errs
}

func (c *Config) validateAuth() []error {
	var errs []error

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"config: auth.token_ttl must be greater than 0, got %s", c.Auth.TokenTTL))
	}

	return errs
}

// ProviderFromModel extracts the provider prefix from a "provider/model" string.
func ProviderFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}

// ModelName extracts the bare model name from a "provider/model" string.
func ModelName(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 && idx < len(model)-1 {
		return model[idx+1:]
	}
	return model
}

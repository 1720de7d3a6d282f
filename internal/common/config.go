package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment" validate:"omitempty,oneof=development production"`
	Storage     StorageConfig    `toml:"storage"`
	Documents   DocumentsConfig  `toml:"documents"`
	LocalModels LocalModelConfig `toml:"local_models"`
	Keys        KeysDirConfig    `toml:"keys"`
	Logging     LoggingConfig    `toml:"logging"`
	Providers   ProvidersConfig  `toml:"providers"`
	Consult     ConsultConfig    `toml:"consult"`
	Retry       RetryConfig      `toml:"retry"`
	Processing  ProcessingConfig `toml:"processing"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// DocumentsConfig locates the source document directory that dataset
// source paths are resolved against.
type DocumentsConfig struct {
	Dir string `toml:"dir"`
}

// LocalModelConfig locates the local model store. The credential resolver
// checks this directory for local-model providers; no API key is needed
// when the model file exists.
type LocalModelConfig struct {
	Dir string `toml:"dir"`
}

// KeysDirConfig contains configuration for system-default credential
// files. Each TOML file in the directory holds [provider] sections with
// credential fields; the files are read once at startup.
type KeysDirConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string   `toml:"format" validate:"omitempty,oneof=text json"`
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini defaults used when a credential
// does not specify a model.
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // System default key (PERITUS_GEMINI_API_KEY overrides)
	Model          string  `toml:"model"`           // Default generation model
	EmbeddingModel string  `toml:"embedding_model"` // Default embedding model
	RateLimit      string  `toml:"rate_limit"`      // Minimum interval between calls, duration string
	Temperature    float32 `toml:"temperature"`
}

// AnthropicConfig contains Anthropic Claude defaults.
type AnthropicConfig struct {
	APIKey      string  `toml:"api_key"` // System default key (PERITUS_ANTHROPIC_API_KEY overrides)
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LlamaConfig contains defaults for the local llama-server provider.
type LlamaConfig struct {
	ChatModel  string `toml:"chat_model"`  // Model file name within the local model directory
	EmbedModel string `toml:"embed_model"` // Embedding model file name
	ServerURL  string `toml:"server_url"`  // Running llama-server endpoint (default http://127.0.0.1:8089)
}

// ProvidersConfig groups per-provider defaults and controls whether the
// system-default credential chain is enabled at all.
type ProvidersConfig struct {
	// EnableSystemDefaults gates seeding of system-scope credentials from
	// config and key files. When false, only user credentials resolve.
	EnableSystemDefaults bool            `toml:"enable_system_defaults"`
	Gemini               GeminiConfig    `toml:"gemini"`
	Anthropic            AnthropicConfig `toml:"anthropic"`
	Llama                LlamaConfig     `toml:"llama"`
}

// ConsultConfig bounds the consult pipeline's external calls. Durations
// are strings ("5m", "30s") parsed with ParseDurationOr.
type ConsultConfig struct {
	IndexTimeout    string `toml:"index_timeout"`    // Per-dataset build budget
	GenerateTimeout string `toml:"generate_timeout"` // Per-request generation budget
}

// RetryConfig bounds retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts    int     `toml:"max_attempts"` // Total attempts including the first
	InitialBackoff string  `toml:"initial_backoff"`
	MaxBackoff     string  `toml:"max_backoff"`
	Multiplier     float64 `toml:"multiplier"`
}

// ProcessingConfig controls the eager reindex scheduler.
type ProcessingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
	Limit    int    `toml:"limit"`    // Max datasets rebuilt per run
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in peritus.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Documents: DocumentsConfig{
			Dir: "./documents",
		},
		LocalModels: LocalModelConfig{
			Dir: "./models",
		},
		Keys: KeysDirConfig{
			Dir: "./keys",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Providers: ProvidersConfig{
			EnableSystemDefaults: true,
			Gemini: GeminiConfig{
				Model:          "gemini-3-flash-preview",
				EmbeddingModel: "gemini-embedding-001",
				RateLimit:      "4s", // 15 RPM free tier
				Temperature:    0.7,
			},
			Anthropic: AnthropicConfig{
				Model:       "claude-haiku-3-5-20241022",
				MaxTokens:   8192,
				RateLimit:   "1s",
				Temperature: 0.7,
			},
			Llama: LlamaConfig{
				ServerURL: "http://127.0.0.1:8089",
			},
		},
		Consult: ConsultConfig{
			IndexTimeout:    "5m",
			GenerateTimeout: "2m",
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: "2s",
			MaxBackoff:     "30s",
			Multiplier:     2.0,
		},
		Processing: ProcessingConfig{
			Enabled:  false, // User must explicitly opt in
			Schedule: "0 */6 * * *",
			Limit:    100,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 ->
// file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies PERITUS_* environment variables on top of the
// file configuration.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PERITUS_DATA_DIR"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("PERITUS_DOCUMENTS_DIR"); v != "" {
		config.Documents.Dir = v
	}
	if v := os.Getenv("PERITUS_MODELS_DIR"); v != "" {
		config.LocalModels.Dir = v
	}
	if v := os.Getenv("PERITUS_KEYS_DIR"); v != "" {
		config.Keys.Dir = v
	}
	if v := os.Getenv("PERITUS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PERITUS_GEMINI_API_KEY"); v != "" {
		config.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv("PERITUS_ANTHROPIC_API_KEY"); v != "" {
		config.Providers.Anthropic.APIKey = v
	}
	// Standard variable honored alongside the PERITUS_ prefixed one
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Providers.Anthropic.APIKey == "" {
		config.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("PERITUS_SYSTEM_DEFAULTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Providers.EnableSystemDefaults = b
		}
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseDurationOr parses a duration string, returning the fallback for
// empty or malformed values.
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

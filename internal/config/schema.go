package config

import (
	"os"
	"strings"
	"time"
)

// Config holds global bookwriter configuration.
// Read from: ./config.yaml or $HOME/.bookwriter/config.yaml, overridden by
// BOOKWRITER_* environment variables.
type Config struct {
	Provider string            `mapstructure:"provider" yaml:"provider"` // "openrouter", "openai", "mock"
	Model    string            `mapstructure:"model" yaml:"model"`
	BaseURL  string            `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKeys  map[string]string `mapstructure:"api_keys" yaml:"api_keys"` // provider -> key (supports ${ENV_VAR} syntax)

	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`

	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`

	MaxConcurrentChapters int `mapstructure:"max_concurrent_chapters" yaml:"max_concurrent_chapters"`

	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Pandoc  PandocConfig  `mapstructure:"pandoc" yaml:"pandoc"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"` // OTLP gRPC host:port
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// PandocConfig controls document conversion.
type PandocConfig struct {
	// Binary is the local pandoc executable (default: pandoc on PATH).
	Binary string `mapstructure:"binary" yaml:"binary"`
	// Image is the Docker image used when no local binary is found.
	Image string `mapstructure:"image" yaml:"image"`
	// PDFEngine is passed to pandoc as --pdf-engine.
	PDFEngine string `mapstructure:"pdf_engine" yaml:"pdf_engine"`
}

// Defaults applied when neither config nor environment sets a value.
const (
	DefaultProvider              = "openrouter"
	DefaultModel                 = "anthropic/claude-sonnet-4"
	DefaultTimeout               = 5 * time.Minute
	DefaultMaxRetries            = 3
	DefaultBaseDelay             = time.Second
	DefaultMaxDelay              = 60 * time.Second
	DefaultRequestsPerMinute     = 60
	DefaultTemperature           = 0.7
	DefaultMaxTokens             = 4096
	DefaultMaxConcurrentChapters = 5
	DefaultPandocImage           = "pandoc/latex:latest"
	DefaultPDFEngine             = "xelatex"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: DefaultProvider,
		Model:    DefaultModel,
		APIKeys: map[string]string{
			"openrouter": "${OPENROUTER_API_KEY}",
			"openai":     "${OPENAI_API_KEY}",
		},
		Timeout:               DefaultTimeout,
		MaxRetries:            DefaultMaxRetries,
		BaseDelay:             DefaultBaseDelay,
		MaxDelay:              DefaultMaxDelay,
		RequestsPerMinute:     DefaultRequestsPerMinute,
		Temperature:           DefaultTemperature,
		MaxTokens:             DefaultMaxTokens,
		MaxConcurrentChapters: DefaultMaxConcurrentChapters,
		Tracing: TracingConfig{
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
		Pandoc: PandocConfig{
			Binary:    "pandoc",
			Image:     DefaultPandocImage,
			PDFEngine: DefaultPDFEngine,
		},
	}
}

// ResolveAPIKey returns the API key for a provider with ${ENV_VAR}
// references expanded. With no configured key it falls back to
// <PROVIDER>_API_KEY from the environment.
func (c *Config) ResolveAPIKey(provider string) string {
	if key := ResolveEnvVars(c.APIKeys[provider]); key != "" {
		return key
	}
	return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
}

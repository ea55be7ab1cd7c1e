package config

import (
	"fmt"
	"time"
)

// Entry is one effective setting with a description, for display.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// Entries lists cfg's settings in display order. API keys are shown as
// configured, never resolved.
func Entries(cfg *Config) []Entry {
	entries := []Entry{
		{Key: "provider", Value: cfg.Provider, Description: "Generation backend (openrouter, openai, mock)"},
		{Key: "model", Value: cfg.Model, Description: "Model requested for every section"},
		{Key: "base_url", Value: cfg.BaseURL, Description: "API base URL override (empty uses the provider default)"},
	}
	for _, name := range []string{"openrouter", "openai"} {
		if key, ok := cfg.APIKeys[name]; ok {
			entries = append(entries, Entry{
				Key:         "api_keys." + name,
				Value:       key,
				Description: fmt.Sprintf("API key for %s (supports ${ENV_VAR})", name),
			})
		}
	}
	entries = append(entries,
		Entry{Key: "timeout", Value: durationString(cfg.Timeout), Description: "HTTP timeout per request"},
		Entry{Key: "max_retries", Value: cfg.MaxRetries, Description: "Attempts per section for transient errors"},
		Entry{Key: "base_delay", Value: durationString(cfg.BaseDelay), Description: "Initial retry backoff"},
		Entry{Key: "max_delay", Value: durationString(cfg.MaxDelay), Description: "Retry backoff cap"},
		Entry{Key: "requests_per_minute", Value: cfg.RequestsPerMinute, Description: "Client-side rate limit (0 disables)"},
		Entry{Key: "temperature", Value: cfg.Temperature, Description: "Sampling temperature"},
		Entry{Key: "max_tokens", Value: cfg.MaxTokens, Description: "Completion token limit per section"},
		Entry{Key: "max_concurrent_chapters", Value: cfg.MaxConcurrentChapters, Description: "Chapters generated in parallel"},
		Entry{Key: "tracing.enabled", Value: cfg.Tracing.Enabled, Description: "Export OpenTelemetry spans"},
		Entry{Key: "tracing.endpoint", Value: cfg.Tracing.Endpoint, Description: "OTLP gRPC collector address"},
		Entry{Key: "tracing.sample_rate", Value: cfg.Tracing.SampleRate, Description: "Fraction of runs traced"},
		Entry{Key: "pandoc.binary", Value: cfg.Pandoc.Binary, Description: "Local pandoc executable"},
		Entry{Key: "pandoc.image", Value: cfg.Pandoc.Image, Description: "Docker image used without a local pandoc"},
		Entry{Key: "pandoc.pdf_engine", Value: cfg.Pandoc.PDFEngine, Description: "PDF engine passed to pandoc"},
	)
	return entries
}

// GetEntry returns the entry for key, or nil.
func GetEntry(cfg *Config, key string) *Entry {
	for _, e := range Entries(cfg) {
		if e.Key == key {
			return &e
		}
	}
	return nil
}

func durationString(d time.Duration) string {
	return d.String()
}

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BookConfig is a book's own config.yaml. Zero fields defer to the global
// configuration.
type BookConfig struct {
	Title                 string `yaml:"title,omitempty"`
	Author                string `yaml:"author,omitempty"`
	Model                 string `yaml:"model,omitempty"`
	Provider              string `yaml:"provider,omitempty"`
	MaxConcurrentChapters int    `yaml:"max_concurrent_chapters,omitempty"`
}

// LoadBookConfig reads a book config. A missing file yields an empty config.
func LoadBookConfig(path string) (*BookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &BookConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read book config: %w", err)
	}

	var cfg BookConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse book config %s: %w", path, err)
	}
	return &cfg, nil
}

// WriteBookConfig writes cfg to path.
func WriteBookConfig(path string, cfg *BookConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal book config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Overrides are values given on the command line. Zero values are unset.
type Overrides struct {
	Provider              string
	Model                 string
	MaxConcurrentChapters int
}

// Resolve merges configuration layers for one book. Priority, highest
// first: command line, book config, global config and environment,
// defaults. The global config passed in already carries the last two.
func Resolve(global *Config, book *BookConfig, o Overrides) *Config {
	out := *global
	out.APIKeys = make(map[string]string, len(global.APIKeys))
	for k, v := range global.APIKeys {
		out.APIKeys[k] = v
	}

	if book != nil {
		out.Provider = firstNonEmpty(book.Provider, out.Provider)
		out.Model = firstNonEmpty(book.Model, out.Model)
		if book.MaxConcurrentChapters > 0 {
			out.MaxConcurrentChapters = book.MaxConcurrentChapters
		}
	}

	out.Provider = firstNonEmpty(o.Provider, out.Provider)
	out.Model = firstNonEmpty(o.Model, out.Model)
	if o.MaxConcurrentChapters > 0 {
		out.MaxConcurrentChapters = o.MaxConcurrentChapters
	}

	if out.Provider == "" {
		out.Provider = DefaultProvider
	}
	if out.Model == "" {
		out.Model = DefaultModel
	}
	if out.MaxConcurrentChapters <= 0 {
		out.MaxConcurrentChapters = DefaultMaxConcurrentChapters
	}
	return &out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

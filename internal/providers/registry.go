package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ClientConfig selects and configures a generation client. It mirrors the
// resolved config.Config so the CLI can build a client in one call.
type ClientConfig struct {
	Provider string // "openrouter" (default), "openai", "mock"
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration

	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int

	Logger *slog.Logger
}

// Factory builds a single-attempt client from config.
type Factory func(cfg ClientConfig) (LLMClient, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		OpenRouterName: func(cfg ClientConfig) (LLMClient, error) {
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("openrouter: API key is required")
			}
			return NewOpenRouterClient(OpenRouterConfig{
				APIKey:       cfg.APIKey,
				BaseURL:      cfg.BaseURL,
				DefaultModel: cfg.Model,
				Timeout:      cfg.Timeout,
			}), nil
		},
		OpenAIName: func(cfg ClientConfig) (LLMClient, error) {
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("openai: API key is required")
			}
			return NewOpenAIClient(OpenAIConfig{
				APIKey:       cfg.APIKey,
				BaseURL:      cfg.BaseURL,
				DefaultModel: cfg.Model,
				Timeout:      cfg.Timeout,
			}), nil
		},
		MockClientName: func(cfg ClientConfig) (LLMClient, error) {
			return NewMockClient(), nil
		},
	}
)

// Register adds or replaces a named factory.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Names returns the registered provider names, sorted.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient builds the configured client wrapped in a RetryClient with a
// shared rate limiter.
func NewClient(cfg ClientConfig) (*RetryClient, error) {
	if cfg.Provider == "" {
		cfg.Provider = OpenRouterName
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", cfg.Provider, Names())
	}

	inner, err := f(cfg)
	if err != nil {
		return nil, err
	}

	return NewRetryClient(inner, RetryConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		Limiter:    NewRateLimiter(cfg.RequestsPerMinute),
		Logger:     cfg.Logger,
	}), nil
}

package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 60 * time.Second
)

// RetryConfig configures RetryClient.
type RetryConfig struct {
	MaxRetries int           // Total attempts per call (default: 3)
	BaseDelay  time.Duration // First backoff delay (default: 1s)
	MaxDelay   time.Duration // Backoff cap (default: 60s)
	Limiter    *RateLimiter  // Optional; waited on before every attempt
	Logger     *slog.Logger
}

// RetryClient wraps an LLMClient with exponential backoff. Only transient
// errors (rate limit, timeout, server) are retried; a Retry-After hint from
// the server overrides the computed delay, still capped at MaxDelay.
type RetryClient struct {
	inner      LLMClient
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewRetryClient wraps inner.
func NewRetryClient(inner LLMClient, cfg RetryConfig) *RetryClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetryClient{
		inner:      inner,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
	}
}

// Name returns the wrapped client's name.
func (c *RetryClient) Name() string {
	return c.inner.Name()
}

// Chat sends req, retrying transient failures.
func (c *RetryClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	attempts := 0

	result, err := retry.DoWithData(
		func() (*ChatResult, error) {
			attempts++
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, retry.Unrecoverable(err)
				}
			}

			res, err := c.inner.Chat(ctx, req)
			if err == nil {
				return res, nil
			}

			var apiErr *APIError
			if errors.As(err, &apiErr) && errors.Is(err, ErrRateLimited) && c.limiter != nil {
				c.limiter.Record429(apiErr.RetryAfter)
			}
			if !IsTransient(err) {
				return nil, retry.Unrecoverable(err)
			}
			return nil, err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.baseDelay),
		retry.MaxDelay(c.maxDelay),
		retry.DelayType(c.delay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying generation request",
				"provider", c.inner.Name(),
				"attempt", n+1,
				"max_attempts", c.maxRetries,
				"error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	result.Attempts = attempts
	return result, nil
}

// delay uses the server's Retry-After hint when present, exponential
// backoff otherwise.
func (c *RetryClient) delay(n uint, err error, cfg *retry.Config) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, c.maxDelay)
	}
	return min(retry.BackOffDelay(n, err, cfg), c.maxDelay)
}

// Verify interface
var _ LLMClient = (*RetryClient)(nil)

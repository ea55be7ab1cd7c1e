package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
//
// By default it answers every request with ResponseText. Handler, when
// set, takes over completely, which lets tests script per-section outcomes.
type MockClient struct {
	Latency      time.Duration
	ResponseText string

	// Errors returned in order by successive calls before any success.
	Errors []error

	// Handler overrides the default behavior when non-nil.
	Handler func(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	mu           sync.Mutex
	requests     []ChatRequest
	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat records req and returns the scripted outcome.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	var scripted error
	if len(c.Errors) > 0 {
		scripted = c.Errors[0]
		c.Errors = c.Errors[1:]
	}
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.Handler != nil {
		return c.Handler(ctx, req)
	}
	if scripted != nil {
		return nil, scripted
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
	}
	completionTokens := len(c.ResponseText) / 4

	return &ChatResult{
		Content:          c.ResponseText,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
		Attempts:         1,
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// LastUserMessage returns the user content of the most recent request
// whose prompt contains substr, or "" when none does.
func (c *MockClient) LastUserMessage(substr string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.requests) - 1; i >= 0; i-- {
		for _, m := range c.requests[i].Messages {
			if m.Role == RoleUser && strings.Contains(m.Content, substr) {
				return m.Content
			}
		}
	}
	return ""
}

// Reset clears recorded requests and the counter.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
	c.requestCount.Store(0)
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 512

// doRequest performs one POST to OpenRouter and classifies any failure.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, orReq *openRouterRequest) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(orReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterTitle)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(OpenRouterName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(OpenRouterName, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Provider:   OpenRouterName,
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    errorMessage(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, &APIError{Provider: OpenRouterName, Class: ErrMalformedResponse, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	// OpenRouter can report upstream failures inside a 200 response.
	if orResp.Error != nil {
		return nil, c.bodyError(orResp.Error)
	}

	return &orResp, nil
}

// bodyError classifies an error object embedded in a 200 response.
func (c *OpenRouterClient) bodyError(e *openRouterError) error {
	code := fmt.Sprintf("%v", e.Code)
	class := ErrBadRequest
	switch code {
	case "overloaded", "502", "503", "500":
		class = ErrServer
	case "rate_limit_exceeded", "429":
		class = ErrRateLimited
	case "401", "403":
		class = ErrAuthentication
	}
	return &APIError{Provider: OpenRouterName, Class: class, Message: e.Message}
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte) string {
	var wrapped struct {
		Error *openRouterError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

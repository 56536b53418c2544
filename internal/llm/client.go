// Package llm provides the client for the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cartscope/cartscope/internal/domain"
)

const anthropicVersion = "2023-06-01"

// Completer is the completion boundary consumed by the conversation session.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (*domain.TurnOutcome, error)
}

// Client is the Anthropic Messages API client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Ensure Client implements Completer at compile time.
var _ Completer = (*Client)(nil)

// NewClient creates a new Messages API client. maxTokens bounds the output
// size of every completion; the client never retries.
func NewClient(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// messagesRequest is the Messages API request body.
type messagesRequest struct {
	Model     string                  `json:"model"`
	MaxTokens int                     `json:"max_tokens"`
	Tools     []domain.ToolDefinition `json:"tools,omitempty"`
	Messages  []domain.Message        `json:"messages"`
}

// messagesResponse is the Messages API response body.
type messagesResponse struct {
	ID         string                `json:"id"`
	Role       string                `json:"role"`
	Content    []domain.ContentBlock `json:"content"`
	StopReason string                `json:"stop_reason"`
	Usage      *Usage                `json:"usage,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error *APIError `json:"error"`
}

// APIError represents the error details.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends the conversation and the tool surface to the completion
// service and maps the response to a turn outcome. Every failure surfaces as
// *domain.UpstreamError; there is no silent empty result.
func (c *Client) Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (*domain.TurnOutcome, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Tools:     tools,
		Messages:  messages,
	})
	if err != nil {
		return nil, &domain.UpstreamError{Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.UpstreamError{Message: "failed to create request", Err: err}
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Message: "failed to send request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return nil, &domain.UpstreamError{
				Status:  resp.StatusCode,
				Message: fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type),
			}
		}
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Message: string(respBody)}
	}

	var result messagesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Message: "failed to unmarshal response", Err: err}
	}

	outcome := &domain.TurnOutcome{
		StopReason: domain.StopReason(result.StopReason),
		Content:    result.Content,
	}

	switch outcome.StopReason {
	case domain.StopToolUse:
		if len(outcome.ToolUses()) == 0 {
			return nil, &domain.UpstreamError{
				Status:  resp.StatusCode,
				Message: "stop_reason tool_use without tool_use blocks",
			}
		}
	case domain.StopEndTurn:
		// No obligations beyond the content itself.
	default:
		// max_tokens and friends: the output bound was exceeded or the turn
		// ended in a state the loop cannot continue from.
		return nil, &domain.UpstreamError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected stop_reason %q", result.StopReason),
		}
	}

	return outcome, nil
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", anthropicVersion)
}

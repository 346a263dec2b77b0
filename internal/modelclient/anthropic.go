package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	defaultAnthropicKeyEnv  = "ANTHROPIC_API_KEY"
)

type anthropicOptions struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKeyEnv      string `mapstructure:"api_key_env"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// anthropicClient talks to the Anthropic Messages API over plain HTTP.
type anthropicClient struct {
	modelID string
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAnthropicClient(modelID string, opts anthropicOptions) (*anthropicClient, error) {
	keyEnv := opts.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAnthropicKeyEnv
	}
	apiKey := strings.TrimSpace(os.Getenv(keyEnv))
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", keyEnv)
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &anthropicClient{
		modelID: modelID,
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

type anthropicAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Error   *anthropicAPIError      `json:"error,omitempty"`
}

// Complete performs one Messages API call. Rate limits and server errors
// come back as plain errors so the caller can retry; request-shaped
// failures come back permanent.
func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Message, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       c.modelID,
		MaxTokens:   req.MaxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, Permanent(fmt.Errorf("encoding request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("building request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading anthropic response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("anthropic api status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	default:
		return nil, Permanent(fmt.Errorf("anthropic api status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return nil, Permanent(fmt.Errorf("anthropic api error: %s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("anthropic response had no content blocks")
	}

	var thinking, text strings.Builder
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		}
	}
	return &Message{Thinking: thinking.String(), Text: text.String()}, nil
}

func (c *anthropicClient) ModelID() string { return c.modelID }

func (c *anthropicClient) Close() error { return nil }

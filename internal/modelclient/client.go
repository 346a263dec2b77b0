// Package modelclient wraps the evaluator model backends behind a single
// completion interface. The backend is picked from the model id once, at
// startup; a model id no backend claims is a configuration error, not a
// per-request one.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Request is a single completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Message is a completion. Thinking is non-empty only for backends that
// expose the model's private reasoning separately from its answer.
type Message struct {
	Thinking string
	Text     string
}

// Client is one evaluator backend.
type Client interface {
	// Complete performs a single attempt. Retry policy belongs to the
	// caller; errors wrapped in PermanentError must not be retried.
	Complete(ctx context.Context, req Request) (*Message, error)

	// ModelID returns the model id this client was built for.
	ModelID() string

	// Close releases backend resources (subprocesses, connections).
	Close() error
}

// PermanentError marks a failure that retrying cannot fix, such as a
// rejected request or bad credentials.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so retry loops give up on it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its
// chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// New builds the backend client for modelID. Routing: ids containing
// "claude" go to the Anthropic API, ids starting with "gemini" to the
// Gemini API, and ids with a "copilot:" prefix to a Copilot CLI session
// using the rest of the id as the session model. Backend-specific settings
// arrive in params and are decoded per backend.
func New(ctx context.Context, modelID string, params map[string]any) (Client, error) {
	switch {
	case strings.Contains(modelID, "claude") && !strings.HasPrefix(modelID, "copilot:"):
		var v anthropicOptions
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("anthropic options: %w", err)
		}
		return newAnthropicClient(modelID, v)

	case strings.HasPrefix(modelID, "gemini"):
		var v geminiOptions
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("gemini options: %w", err)
		}
		return newGeminiClient(ctx, modelID, v)

	case strings.HasPrefix(modelID, "copilot:"):
		var v copilotOptions
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("copilot options: %w", err)
		}
		return newCopilotClient(modelID, v)

	default:
		return nil, fmt.Errorf("unsupported evaluator model %q", modelID)
	}
}

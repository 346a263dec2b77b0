package modelclient

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

type geminiOptions struct {
	APIKey string `mapstructure:"api_key"`
}

// geminiClient wraps the official genai client. The API key comes from
// GEMINI_API_KEY unless overridden in options.
type geminiClient struct {
	cli     *genai.Client
	modelID string
}

func newGeminiClient(ctx context.Context, modelID string, opts geminiOptions) (*geminiClient, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &geminiClient{cli: cli, modelID: modelID}, nil
}

func (g *geminiClient) Complete(ctx context.Context, req Request) (*Message, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.modelID,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response had no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return &Message{Text: text.String()}, nil
}

func (g *geminiClient) ModelID() string { return g.modelID }

func (g *geminiClient) Close() error { return nil }

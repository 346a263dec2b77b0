package modelclient

import (
	"context"
	"fmt"
	"strings"

	copilot "github.com/github/copilot-sdk/go"

	"stepscope/internal/utils"
)

type copilotOptions struct {
	Cwd      string `mapstructure:"cwd"`
	LogLevel string `mapstructure:"log_level"`
}

// copilotClient runs prompts through a Copilot CLI server. Each Complete
// call gets its own session so evaluations never see each other's history.
type copilotClient struct {
	modelID      string
	sessionModel string
	client       *copilot.Client
}

func newCopilotClient(modelID string, opts copilotOptions) (*copilotClient, error) {
	sessionModel := strings.TrimPrefix(modelID, "copilot:")
	if sessionModel == "" {
		return nil, fmt.Errorf("copilot model id %q names no session model", modelID)
	}

	logLevel := opts.LogLevel
	if logLevel == "" {
		logLevel = "error"
	}

	client := copilot.NewClient(&copilot.ClientOptions{
		Cwd:             opts.Cwd,
		AutoStart:       utils.Ptr(true),
		AutoRestart:     utils.Ptr(true),
		UseLoggedInUser: utils.Ptr(true),
		LogLevel:        logLevel,
	})

	return &copilotClient{
		modelID:      modelID,
		sessionModel: sessionModel,
		client:       client,
	}, nil
}

func (c *copilotClient) Complete(ctx context.Context, req Request) (*Message, error) {
	session, err := c.client.CreateSession(ctx, &copilot.SessionConfig{
		Model: c.sessionModel,
	})
	if err != nil {
		return nil, fmt.Errorf("starting copilot session: %w", err)
	}

	session.On(utils.SessionToSlog)

	resp, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: req.Prompt,
		Mode:   "enqueue",
	})
	if err != nil {
		return nil, fmt.Errorf("copilot request: %w", err)
	}
	if resp == nil || resp.Data.Content == nil {
		return nil, fmt.Errorf("copilot response had no content")
	}

	msg := &Message{Text: *resp.Data.Content}
	if resp.Data.ReasoningText != nil {
		msg.Thinking = *resp.Data.ReasoningText
	}
	return msg, nil
}

func (c *copilotClient) ModelID() string { return c.modelID }

func (c *copilotClient) Close() error {
	return c.client.Stop()
}

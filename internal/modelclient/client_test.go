package modelclient

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoutesByModelID(t *testing.T) {
	ctx := context.Background()

	t.Run("claude ids hit the anthropic backend", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "test-key")

		c, err := New(ctx, "claude-3.5-sonnet", nil)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })

		assert.IsType(t, &anthropicClient{}, c)
		assert.Equal(t, "claude-3.5-sonnet", c.ModelID())
	})

	t.Run("anthropic backend requires an api key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := New(ctx, "claude-3.5-sonnet", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	})

	t.Run("api key env override", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("OTHER_KEY", "alt")

		c, err := New(ctx, "claude-3.5-sonnet", map[string]any{"api_key_env": "OTHER_KEY"})
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
	})

	t.Run("unsupported model is a startup error", func(t *testing.T) {
		for _, id := range []string{"gpt-4o", "llama-3", "", "mistral-large"} {
			_, err := New(ctx, id, nil)
			require.Error(t, err, "model %q", id)
			assert.Contains(t, err.Error(), "unsupported evaluator model")
		}
	})

	t.Run("copilot prefix requires a session model", func(t *testing.T) {
		_, err := New(ctx, "copilot:", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "names no session model")
	})

	t.Run("bad options are rejected", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "test-key")

		_, err := New(ctx, "claude-3.5-sonnet", map[string]any{"timeout_seconds": "not a number"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic options")
	})
}

func TestPermanentError(t *testing.T) {
	base := fmt.Errorf("bad request")

	assert.Nil(t, Permanent(nil))

	wrapped := Permanent(base)
	assert.True(t, IsPermanent(wrapped))
	assert.True(t, IsPermanent(fmt.Errorf("outer: %w", wrapped)))
	assert.False(t, IsPermanent(base))
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, "bad request", wrapped.Error())
}

func TestFakeClient(t *testing.T) {
	ctx := context.Background()

	t.Run("echoes by default", func(t *testing.T) {
		f := NewFakeClient("fake-model")

		msg, err := f.Complete(ctx, Request{Prompt: "hello"})
		require.NoError(t, err)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, []string{"hello"}, f.Calls())
	})

	t.Run("scripted replies", func(t *testing.T) {
		f := NewFakeClient("fake-model")
		f.Reply = func(prompt string) (*Message, error) {
			return nil, fmt.Errorf("scripted failure")
		}

		_, err := f.Complete(ctx, Request{Prompt: "x"})
		require.Error(t, err)
	})

	t.Run("honors cancelled context", func(t *testing.T) {
		f := NewFakeClient("fake-model")
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.Complete(cancelled, Request{Prompt: "x"})
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, f.Calls())
	})
}

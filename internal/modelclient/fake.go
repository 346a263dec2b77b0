package modelclient

import (
	"context"
	"sync"
)

// FakeClient is a scripted Client for tests and dry runs. By default it
// echoes the prompt back; set Reply to script responses or failures.
type FakeClient struct {
	ID    string
	Reply func(prompt string) (*Message, error)

	mu    sync.Mutex
	calls []string
}

// NewFakeClient creates a fake that identifies as modelID.
func NewFakeClient(modelID string) *FakeClient {
	return &FakeClient{ID: modelID}
}

func (f *FakeClient) Complete(ctx context.Context, req Request) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.Prompt)
	f.mu.Unlock()

	if f.Reply != nil {
		return f.Reply(req.Prompt)
	}
	return &Message{Text: req.Prompt}, nil
}

func (f *FakeClient) ModelID() string { return f.ID }

func (f *FakeClient) Close() error { return nil }

// Calls returns every prompt the fake has seen, in call order.
func (f *FakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"stepscope/internal/cache"
	"stepscope/internal/collection"
	"stepscope/internal/modelclient"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go.opencensus.io (pulled in via minio-go) starts this worker in
		// package init; it is not a goroutine leaked by code under test.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func noSleep(p *Processor) {
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
}

func echoProcess(item Item, msg *modelclient.Message) (*collection.StepResult, error) {
	return &collection.StepResult{
		Step:           item.Key.Step,
		Classification: msg.Text,
		Reasoning:      msg.Thinking,
	}, nil
}

func testItems(n int) []Item {
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item{
			Key:    Key{QID: "problem_0", Step: fmt.Sprintf("step %d", i), StepIndex: i},
			Prompt: fmt.Sprintf("evaluate step %d", i),
		})
	}
	return items
}

func TestProcessorExecute(t *testing.T) {
	client := modelclient.NewFakeClient("claude-3.5-sonnet")
	client.Reply = func(prompt string) (*modelclient.Message, error) {
		return &modelclient.Message{Text: "YNNYNNNY", Thinking: "thought about " + prompt}, nil
	}

	p := NewProcessor(client, echoProcess,
		WithMaxParallel(2),
		WithLimiter(NewWindowLimiter(100, 100000, time.Minute)))
	noSleep(p)

	items := testItems(3)
	outcomes, err := p.Execute(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	seen := map[Key]bool{}
	for _, o := range outcomes {
		require.NotNil(t, o.Result, "key %+v", o.Key)
		assert.Equal(t, "YNNYNNNY", o.Result.Classification)
		assert.Equal(t, o.Key.Step, o.Result.Step)
		assert.False(t, seen[o.Key], "key returned twice: %+v", o.Key)
		seen[o.Key] = true
	}
	for _, item := range items {
		assert.True(t, seen[item.Key], "missing outcome for %+v", item.Key)
	}
}

func TestProcessorItemFailureContained(t *testing.T) {
	client := modelclient.NewFakeClient("claude-3.5-sonnet")
	client.Reply = func(prompt string) (*modelclient.Message, error) {
		if strings.Contains(prompt, "step 1") {
			return nil, errors.New("anthropic api status 500: overloaded")
		}
		return &modelclient.Message{Text: "YNNYNNNY"}, nil
	}

	p := NewProcessor(client, echoProcess, WithMaxRetries(2))
	noSleep(p)

	outcomes, err := p.Execute(context.Background(), testItems(3))
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	byIndex := map[int]*collection.StepResult{}
	for _, o := range outcomes {
		byIndex[o.Key.StepIndex] = o.Result
	}
	assert.NotNil(t, byIndex[0])
	assert.Nil(t, byIndex[1], "failed item must come back with a nil result")
	assert.NotNil(t, byIndex[2])

	// One initial attempt plus two retries for the failing item.
	failing := 0
	for _, prompt := range client.Calls() {
		if strings.Contains(prompt, "step 1") {
			failing++
		}
	}
	assert.Equal(t, 3, failing)
}

func TestProcessorPermanentErrorSkipsRetries(t *testing.T) {
	client := modelclient.NewFakeClient("claude-3.5-sonnet")
	client.Reply = func(prompt string) (*modelclient.Message, error) {
		return nil, modelclient.Permanent(errors.New("anthropic api status 400: bad request"))
	}

	p := NewProcessor(client, echoProcess, WithMaxRetries(3))
	noSleep(p)

	outcomes, err := p.Execute(context.Background(), testItems(1))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Result)
	assert.Len(t, client.Calls(), 1, "permanent errors must not be retried")
}

func TestProcessorProcessFuncErrorCountsAsAttempt(t *testing.T) {
	client := modelclient.NewFakeClient("claude-3.5-sonnet")
	client.Reply = func(prompt string) (*modelclient.Message, error) {
		return &modelclient.Message{Text: "garbage"}, nil
	}

	process := func(item Item, msg *modelclient.Message) (*collection.StepResult, error) {
		return nil, errors.New("no answer tags present")
	}

	p := NewProcessor(client, process, WithMaxRetries(1))
	noSleep(p)

	outcomes, err := p.Execute(context.Background(), testItems(1))
	require.NoError(t, err)
	assert.Nil(t, outcomes[0].Result)
	assert.Len(t, client.Calls(), 2)
}

func TestProcessorContextCanceled(t *testing.T) {
	client := modelclient.NewFakeClient("claude-3.5-sonnet")

	p := NewProcessor(client, echoProcess)
	noSleep(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, testItems(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessorCache(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	client := modelclient.NewFakeClient("claude-3.5-sonnet")
	client.Reply = func(prompt string) (*modelclient.Message, error) {
		return &modelclient.Message{Text: "YNNYNNNY"}, nil
	}

	p := NewProcessor(client, echoProcess, WithCache(c))
	noSleep(p)

	items := testItems(1)

	outcomes, err := p.Execute(context.Background(), items)
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Result)
	require.Len(t, client.Calls(), 1)

	// Identical request is served from cache without touching the client.
	outcomes, err = p.Execute(context.Background(), items)
	require.NoError(t, err)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, "YNNYNNNY", outcomes[0].Result.Classification)
	assert.Len(t, client.Calls(), 1)
}

package batch

import (
	"context"
	"sync"

	"stepscope/internal/collection"
)

// MockExecutor is a scripted Executor for tests and dry runs. Items whose
// key appears in Results come back with that result, items whose key
// appears in FailKeys come back with a nil Result, and everything else
// gets a canned pass-through result.
type MockExecutor struct {
	// Results maps keys to the outcome payload to return for them.
	Results map[Key]*collection.StepResult

	// FailKeys marks keys whose outcome should carry a nil Result.
	FailKeys map[Key]bool

	// Err, when set, is returned from every Execute call.
	Err error

	mu      sync.Mutex
	batches [][]Item
}

// NewMockExecutor creates an empty scripted executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Results:  map[Key]*collection.StepResult{},
		FailKeys: map[Key]bool{},
	}
}

func (m *MockExecutor) Execute(ctx context.Context, items []Item) ([]Outcome, error) {
	m.mu.Lock()
	recorded := make([]Item, len(items))
	copy(recorded, items)
	m.batches = append(m.batches, recorded)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(items))
	for _, item := range items {
		if m.FailKeys[item.Key] {
			outcomes = append(outcomes, Outcome{Key: item.Key})
			continue
		}
		if result, ok := m.Results[item.Key]; ok {
			outcomes = append(outcomes, Outcome{Key: item.Key, Result: result})
			continue
		}
		outcomes = append(outcomes, Outcome{
			Key: item.Key,
			Result: &collection.StepResult{
				Step:           item.Key.Step,
				Classification: "YNNYNNNY",
				Reasoning:      "mock evaluation",
			},
		})
	}
	return outcomes, nil
}

// Batches returns a copy of every item batch Execute has received.
func (m *MockExecutor) Batches() [][]Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Item, len(m.batches))
	copy(out, m.batches)
	return out
}

// Package batch dispatches prompt batches against a model client with
// bounded concurrency, rate limiting and per-item retries.
package batch

import (
	"context"

	"stepscope/internal/collection"
)

// Key identifies one step evaluation within a batch. Correlation between
// submitted items and their outcomes happens through the key, never through
// slice positions.
type Key struct {
	// QID is the response identifier within the collection.
	QID string

	// Step is the verbatim step content under evaluation.
	Step string

	// StepIndex is the 0-indexed position of the step within its response.
	StepIndex int
}

// Item is a single prompt to evaluate.
type Item struct {
	Key    Key
	Prompt string
}

// Outcome is the evaluated result for one item. A nil Result means the item
// failed after exhausting its retry budget and should be recorded as skipped.
type Outcome struct {
	Key    Key
	Result *collection.StepResult
}

// Executor evaluates a batch of items. Implementations return one outcome
// per submitted item, in any order. The returned error is reserved for
// whole-batch failures such as context cancellation; per-item failures
// surface as outcomes with a nil Result.
type Executor interface {
	Execute(ctx context.Context, items []Item) ([]Outcome, error)
}

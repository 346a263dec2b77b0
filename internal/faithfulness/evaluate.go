package faithfulness

import (
	"context"
	"fmt"
	"log/slog"

	"stepscope/internal/batch"
	"stepscope/internal/collection"
	"stepscope/internal/modelclient"
	"stepscope/internal/questionnaire"
)

// ProcessFunc returns the dispatch hook that turns raw evaluator replies
// into step results using battery's codec.
func ProcessFunc(battery questionnaire.Battery) batch.ProcessFunc {
	return func(item batch.Item, msg *modelclient.Message) (*collection.StepResult, error) {
		return ParseStepResult(battery, item.Key.Step, msg), nil
	}
}

// BuildBatch renders one dispatch item per step that passes the selector.
// Problems iterate in sorted qid order and steps in trace order, so the
// batch is deterministic. Responses that carry no raw steps (already
// evaluated, or empty) are skipped with a warning.
func BuildBatch(c *collection.Collection, builder *PromptBuilder, selector Selector) ([]batch.Item, error) {
	var items []batch.Item
	for _, qid := range c.QIDs() {
		resp := c.Responses[qid]
		steps, ok := resp.RawSteps()
		if !ok {
			slog.Warn("response carries no raw steps, skipping", "qid", qid)
			continue
		}

		hint := selector.Hint(qid)
		for idx, step := range steps {
			if !selector.Include(qid, idx+1) {
				continue
			}

			prompt, err := builder.Build(resp.Problem, step, steps, hint)
			if err != nil {
				return nil, fmt.Errorf("problem %q step %d: %w", qid, idx, err)
			}
			slog.Debug("rendered evaluator prompt", "qid", qid, "step_index", idx, "prompt", prompt)
			items = append(items, batch.Item{
				Key:    batch.Key{QID: qid, Step: step, StepIndex: idx},
				Prompt: prompt,
			})
		}
	}
	return items, nil
}

// Evaluate runs the whole pipeline over c: build the batch, dispatch it
// once through executor, and aggregate the outcomes into a new collection.
// The returned skip list names every (problem, step) that failed dispatch;
// a non-empty skip list is not an error.
func Evaluate(ctx context.Context, c *collection.Collection, battery questionnaire.Battery, selector Selector, executor batch.Executor, modelID string) (*collection.Collection, []Skip, error) {
	items, err := BuildBatch(c, NewPromptBuilder(battery), selector)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("dispatching evaluation batch", "items", len(items), "model", modelID)

	outcomes, err := executor.Execute(ctx, items)
	if err != nil {
		return nil, nil, fmt.Errorf("executing batch: %w", err)
	}

	result, skips, err := Aggregate(c, modelID, outcomes)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("expected reference code", "code", battery.ExpectedCode())
	for _, skip := range skips {
		slog.Warn("step evaluation skipped", "qid", skip.QID, "step_index", skip.StepIndex)
	}
	return result, skips, nil
}

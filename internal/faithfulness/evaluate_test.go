package faithfulness

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepscope/internal/batch"
	"stepscope/internal/collection"
	"stepscope/internal/questionnaire"
)

func TestBuildBatchAllSteps(t *testing.T) {
	c := inputCollection()
	builder := NewPromptBuilder(questionnaire.Default())

	items, err := BuildBatch(c, builder, nil)
	require.NoError(t, err)
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, "p1", item.Key.QID)
		assert.Equal(t, i, item.Key.StepIndex)
		assert.Equal(t, fmt.Sprintf("s%d", i+1), item.Key.Step)
		assert.Contains(t, item.Prompt, "<problem>\nproblem one\n</problem>")
		assert.Contains(t, item.Prompt, fmt.Sprintf("<step_to_evaluate>\ns%d\n</step_to_evaluate>", i+1))
		assert.Contains(t, item.Prompt, "No critical steps provided.")
	}
}

func TestBuildBatchSelectorExcludesProblem(t *testing.T) {
	c := inputCollection()
	c.Responses["p2"] = structuredResponse("problem two", "t1", "t2")

	// Selector that names only p2: no item is ever built for p1.
	items, err := BuildBatch(c, NewPromptBuilder(questionnaire.Default()), Selector{"p2": {1: true}})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, batch.Key{QID: "p2", Step: "t1", StepIndex: 0}, items[0].Key)
	assert.Contains(t, items[0].Prompt, "critical steps in the reasoning process: 1")
}

func TestBuildBatchSkipsResponsesWithoutRawSteps(t *testing.T) {
	c := inputCollection()
	c.Responses["done"] = &collection.Response{
		Kind:    collection.KindStructured,
		Results: []*collection.StepResult{{Step: "s", Classification: "YNNYNNNY"}},
	}

	items, err := BuildBatch(c, NewPromptBuilder(questionnaire.Default()), nil)
	require.NoError(t, err)
	assert.Len(t, items, 3) // only p1's raw steps
}

func TestBuildBatchBareSteps(t *testing.T) {
	c := &collection.Collection{
		Responses: map[string]*collection.Response{
			"bare": {Kind: collection.KindBareSteps, Steps: []string{"only step"}},
		},
	}

	items, err := BuildBatch(c, NewPromptBuilder(questionnaire.Default()), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	// Bare lists have no problem statement; the section renders empty, not
	// absent.
	assert.Contains(t, items[0].Prompt, "<problem>\n\n</problem>")
}

func TestBuildBatchDeterministicOrder(t *testing.T) {
	c := inputCollection()
	c.Responses["a-first"] = structuredResponse("alpha", "a1")

	items, err := BuildBatch(c, NewPromptBuilder(questionnaire.Default()), nil)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "a-first", items[0].Key.QID)
	assert.Equal(t, "p1", items[1].Key.QID)
}

// Scenario A: every step evaluates cleanly.
func TestEvaluateFullTrace(t *testing.T) {
	c := inputCollection()
	battery := questionnaire.Default()
	exec := batch.NewMockExecutor()

	out, skips, err := Evaluate(context.Background(), c, battery, nil, exec, "eval-model")
	require.NoError(t, err)
	assert.Empty(t, skips)

	require.Len(t, exec.Batches(), 1)
	assert.Len(t, exec.Batches()[0], 3)

	resp := out.Responses["p1"]
	require.Len(t, resp.Results, 3)
	for i, result := range resp.Results {
		assert.Equal(t, fmt.Sprintf("s%d", i+1), result.Step)
		assert.Equal(t, "YNNYNNNY", result.Classification)
	}
	assert.Equal(t, "eval-model", out.ModelID)
	assert.Equal(t, ResultDescription, out.Description)
}

// Scenario B: a critical-step selector narrows the run to step 2.
func TestEvaluateCriticalStepsOnly(t *testing.T) {
	c := inputCollection()
	exec := batch.NewMockExecutor()

	out, skips, err := Evaluate(context.Background(), c, questionnaire.Default(),
		Selector{"p1": {2: true}}, exec, "eval-model")
	require.NoError(t, err)
	assert.Empty(t, skips)

	require.Len(t, exec.Batches(), 1)
	require.Len(t, exec.Batches()[0], 1)
	assert.Equal(t, 1, exec.Batches()[0][0].Key.StepIndex)

	resp := out.Responses["p1"]
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "s2", resp.Results[0].Step)
}

// Scenario C: one dispatch failure is recorded and the run continues.
func TestEvaluateWithDispatchFailure(t *testing.T) {
	c := inputCollection()
	exec := batch.NewMockExecutor()
	exec.FailKeys[batch.Key{QID: "p1", Step: "s2", StepIndex: 1}] = true

	out, skips, err := Evaluate(context.Background(), c, questionnaire.Default(), nil, exec, "eval-model")
	require.NoError(t, err)

	assert.Equal(t, []Skip{{QID: "p1", StepIndex: 1}}, skips)
	resp := out.Responses["p1"]
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "s1", resp.Results[0].Step)
	assert.Equal(t, "s3", resp.Results[1].Step)
}

func TestEvaluateEmptyBatch(t *testing.T) {
	c := &collection.Collection{
		Responses:         map[string]*collection.Response{},
		SplitSuccessCount: 2,
	}
	exec := batch.NewMockExecutor()

	out, skips, err := Evaluate(context.Background(), c, questionnaire.Default(), nil, exec, "eval-model")
	require.NoError(t, err)
	assert.Empty(t, skips)
	assert.Empty(t, out.Responses)
	assert.Equal(t, 2, out.SplitSuccessCount)
}

func TestEvaluateExecutorError(t *testing.T) {
	c := inputCollection()
	exec := batch.NewMockExecutor()
	exec.Err = fmt.Errorf("network down")

	_, _, err := Evaluate(context.Background(), c, questionnaire.Default(), nil, exec, "eval-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

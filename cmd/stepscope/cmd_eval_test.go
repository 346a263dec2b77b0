package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepscope/internal/collection"
	"stepscope/internal/utils"
)

const splittedYAML = `responses:
  putnam_1999_a1:
    name: putnam_1999_a1
    problem: Find all polynomials...
    solution: The reference solution.
    steps:
      - First, consider the constant case.
      - Next, check degree one.
      - Conclude.
    correct: true
    correctness_label: CORRECT
model_id: subject-model
split_success_count: 1
split_failure_count: 0
description: splitted traces
`

func writeSplitted(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "traces_splitted.yaml")
	require.NoError(t, os.WriteFile(path, []byte(splittedYAML), 0o644))
	return path
}

// runRoot executes the root command with args and returns its stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEvalDryRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	input := writeSplitted(t, dir)

	out, err := runRoot(t, "eval", input, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "3 step(s) across 1 problem(s)")
	assert.Contains(t, out, "putnam_1999_a1")

	// Nothing is written on a dry run.
	_, statErr := os.Stat(utils.DeriveOutputPath(input))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEvalUnsupportedModelIsFatal(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	input := writeSplitted(t, dir)

	_, err := runRoot(t, "eval", input, "--model", "gpt-oss-substitute")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported evaluator model")
}

func TestEvalMissingInput(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := runRoot(t, "eval", "absent.yaml", "--dry-run")
	require.Error(t, err)
}

// anthropicStub answers every Messages API call with a fully tagged reply.
func anthropicStub(t *testing.T, failFor string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("x-api-key"))

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if failFor != "" && strings.Contains(req.Messages[0].Content, failFor) {
			http.Error(w, `{"error":{"type":"invalid_request_error","message":"nope"}}`, http.StatusBadRequest)
			return
		}

		var answers strings.Builder
		values := []string{"YES", "NO", "NO", "YES", "NO", "NO", "NO", "YES"}
		for i, v := range values {
			fmt.Fprintf(&answers, "<answer-%d>%s</answer-%d>", i+1, v, i+1)
		}
		fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}]}`, answers.String())
	}))
}

func TestEvalEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	server := anthropicStub(t, "")
	defer server.Close()

	input := writeSplitted(t, dir)
	out, err := runRoot(t, "eval", input,
		"--model", "claude-3.5-sonnet",
		"--model-option", "base_url="+server.URL,
		"--max-parallel", "4",
		"--verbose")
	require.NoError(t, err)

	outputPath := utils.DeriveOutputPath(input)
	assert.Contains(t, out, "Results saved to: "+outputPath)
	assert.Contains(t, out, "Expected reference code: YNNYNNNY")

	result, err := collection.Load(t.Context(), outputPath)
	require.NoError(t, err)
	assert.Equal(t, "claude-3.5-sonnet", result.ModelID)
	assert.Equal(t, 1, result.SplitSuccessCount)

	resp := result.Responses["putnam_1999_a1"]
	require.NotNil(t, resp)
	require.Len(t, resp.Results, 3)
	for _, stepResult := range resp.Results {
		assert.Equal(t, "YNNYNNNY", stepResult.Classification)
	}
	assert.Equal(t, "CORRECT", resp.CorrectnessLabel)
}

func TestEvalEndToEndWithSkips(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	// The stub rejects the prompt for step two permanently.
	server := anthropicStub(t, "Next, check degree one.\n</step_to_evaluate>")
	defer server.Close()

	input := writeSplitted(t, dir)
	out, err := runRoot(t, "eval", input,
		"--model", "claude-3.5-sonnet",
		"--model-option", "base_url="+server.URL,
		"--max-parallel", "4",
		"--verbose")
	require.Error(t, err)

	var skippedErr *SkippedStepsError
	require.True(t, errors.As(err, &skippedErr))
	assert.Equal(t, 1, skippedErr.Count)
	assert.Contains(t, out, "putnam_1999_a1 step 1")

	result, err := collection.Load(t.Context(), utils.DeriveOutputPath(input))
	require.NoError(t, err)
	require.Len(t, result.Responses["putnam_1999_a1"].Results, 2)
}

func TestEvalCriticalSteps(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	server := anthropicStub(t, "")
	defer server.Close()

	criticalPath := filepath.Join(dir, "critical.yaml")
	critical := &collection.Collection{
		Responses: map[string]*collection.Response{
			"putnam_1999_a1": {
				Kind:    collection.KindStructured,
				Results: []*collection.StepResult{{Step: "x", Classification: "2"}},
			},
		},
		ModelID: "selector",
	}
	require.NoError(t, collection.Save(t.Context(), critical, criticalPath))

	input := writeSplitted(t, dir)
	_, err := runRoot(t, "eval", input,
		"--model", "claude-3.5-sonnet",
		"--model-option", "base_url="+server.URL,
		"--critical-steps", criticalPath,
		"--verbose")
	require.NoError(t, err)

	result, err := collection.Load(t.Context(), utils.DeriveOutputPath(input))
	require.NoError(t, err)
	resp := result.Responses["putnam_1999_a1"]
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Next, check degree one.", resp.Results[0].Step)
}

func TestEvalProjectConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// A project config pointing at an unsupported model; the eval command
	// picks it up when --model is not given.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".stepscope.yaml"),
		[]byte("eval:\n  model: unrouted-model\n"), 0o644))

	input := writeSplitted(t, dir)
	_, err := runRoot(t, "eval", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported evaluator model "unrouted-model"`)
}

func TestParseModelParams(t *testing.T) {
	assert.Nil(t, parseModelParams(nil))
	assert.Equal(t,
		map[string]any{"base_url": "http://x", "flag": ""},
		parseModelParams([]string{"base_url=http://x", "flag"}))
}

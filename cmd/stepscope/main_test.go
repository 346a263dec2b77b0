package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkippedStepsErrorMessage(t *testing.T) {
	err := &SkippedStepsError{Count: 3}
	assert.Equal(t, "3 step(s) could not be evaluated", err.Error())
}

func TestSkippedStepsErrorDetection(t *testing.T) {
	wrapped := fmt.Errorf("eval: %w", &SkippedStepsError{Count: 1})

	var skippedErr *SkippedStepsError
	require.True(t, errors.As(wrapped, &skippedErr))
	assert.Equal(t, 1, skippedErr.Count)

	var other *SkippedStepsError
	assert.False(t, errors.As(errors.New("plain"), &other))
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "eval")
	assert.Contains(t, names, "validate")
	assert.Contains(t, names, "report")
	assert.Contains(t, names, "init")
}

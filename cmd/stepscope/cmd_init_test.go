package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepscope/internal/projectconfig"
)

func TestInitWithDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := runRoot(t, "init", "--defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	cfg, err := projectconfig.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, projectconfig.DefaultModel, cfg.Eval.Model)

	// No questionnaire scaffold unless asked for.
	_, statErr := os.Stat(filepath.Join(dir, "questions.yaml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInitIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := runRoot(t, "init", "project", "--defaults")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "project", projectconfig.ConfigFileName))
	assert.NoError(t, statErr)
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := runRoot(t, "init", "--defaults")
	require.NoError(t, err)

	_, err = runRoot(t, "init", "--defaults")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}

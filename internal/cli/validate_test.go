package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cueTickScenario = `name: "tick"
budget: "2s"
timers: [{label: "tick", after: "1s"}]
assertions: [{type: "trace_contains", label: "tick"}]
`

func TestValidateCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestValidateCommandNonExistentDir(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateCommandNonExistentDirJSON(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), "/nonexistent/scenarios")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestValidateCommandValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tick.yaml", tickScenario)
	writeFile(t, dir, "tick.cue", cueTickScenario)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 2 scenario(s) valid")
}

func TestValidateCommandValidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tick.yaml", tickScenario)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Files)
}

func TestValidateCommandDoesNotRunScenarios(t *testing.T) {
	dir := t.TempDir()
	// Valid but failing when run.
	writeFile(t, dir, "double.yaml", doubleTickScenario)

	_, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
}

func TestValidateCommandInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tick.yaml", tickScenario)
	writeFile(t, dir, "unnamed.yaml", unnamedScenario)
	writeFile(t, dir, "typo.yaml", "name: typo\ntimerz: []\n")
	writeFile(t, dir, "closed.cue", cueTickScenario+"extra: 1\n")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 3 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "unnamed.yaml")
	assert.Contains(t, out, "name is required")
	assert.Contains(t, out, "typo.yaml")
	assert.Contains(t, out, "closed.cue")
	assert.NotContains(t, out, "tick.yaml\n")
}

func TestValidateCommandInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "unnamed.yaml", unnamedScenario)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, ErrCodeInvalid, resp.Data.Errors[0].Code)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
}

func TestValidateCommandVerboseGoesToStderr(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tick.yaml", tickScenario)

	out, errOut, err := execute(NewValidateCommand(&RootOptions{Format: "json", Verbose: true}), dir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Found 1 scenario file(s)")
	assert.True(t, json.Valid([]byte(out)))
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: two_increases
description: counter reaches two
steps:
  - dispatch: { type: increase }
  - dispatch: { type: increase }
    expect: { counter: { count: 2 } }
`

const failingScenario = `name: wrong_count
description: expects a count that never happens
steps:
  - dispatch: { type: increase }
assertions:
  - type: final_state
    slice: counter
    expect: { count: 5 }
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRootOptions()), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRootOptions()), "", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRootOptions()), "", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandPassing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "two_increases.yaml", passingScenario)

	out, err := execute(t, NewTestCommand(testRootOptions()), "", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ two_increases")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFailing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "two_increases.yaml", passingScenario)
	writeFile(t, dir, "wrong_count.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(testRootOptions()), "", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "Assertion failed: final_state")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "two_increases.yaml", passingScenario)
	writeFile(t, dir, "wrong_count.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(testRootOptions()), "", dir, "--filter", "two_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, err := execute(t, NewTestCommand(testRootOptions()), "", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGoldenUpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "two_increases.yaml", passingScenario)

	out, err := execute(t, NewTestCommand(testRootOptions()), "", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden file updated")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "two_increases.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"two_increases"`)

	opts := testRootOptions()
	opts.Format = "json"
	out, err = execute(t, NewTestCommand(opts), "", dir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "two_increases.yaml", passingScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeFile(t, filepath.Join(dir, "golden"), "two_increases.golden", `{"stale":true}`)

	out, err := execute(t, NewTestCommand(testRootOptions()), "", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace differs from golden file")
}

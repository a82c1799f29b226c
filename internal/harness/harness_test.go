package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios_AllPass(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{
		"counter_increments",
		"weather_fetch",
		"weather_last_write_wins",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "weather_last_write_wins")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_TraceSeqFollowsCommits(t *testing.T) {
	result, err := Run(loadTestScenario(t, "weather_fetch"))
	require.NoError(t, err)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, []string{"REQUEST_WEATHER", "RECEIVE_WEATHER"}, result.Types())
	// seq 1 is the store's init commit.
	assert.Equal(t, int64(2), result.Trace[0].Seq)
	assert.Equal(t, int64(3), result.Trace[1].Seq)
}

func TestRun_FailedExpectIsReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_count
description: expects the wrong count
steps:
  - dispatch: { type: increase }
    expect: { counter: { count: 2 } }
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0]")
	assert.Contains(t, result.Errors[0], `"count":1`)
}

func TestRun_FailedAssertionIsReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_final
description: asserts a weather reading that never came
steps:
  - fetch: "19446"
assertions:
  - type: final_state
    slice: weather
    expect: { temperature: 70 }
  - type: trace_count
    action: RECEIVE_WEATHER
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_EmptyZipFetchIsReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: empty_zip
description: fetch without a zip code
steps:
  - fetch: ""
    expect: { weather: { isFetching: false } }
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "zip")
	assert.Empty(t, result.Trace)
}

func TestRun_UnknownActionAborts(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: unknown_action
description: dispatches an unregistered type
steps:
  - dispatch: { type: DECREASE }
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0]")
}

func TestRun_ConfigOverrides(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: overrides
description: zip default and devtools off
config:
  zip: "94105"
  devtools: false
steps:
  - refresh: true
    expect: { weather: { zip: "94105" } }
  - dispatch: { type: "@@devtools/RESET" }
    expect: { weather: { zip: "94105", isFetching: true } }
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowstate/internal/app"
	"github.com/roach88/flowstate/internal/testutil"
	"github.com/roach88/flowstate/internal/weather"
)

// noEnv is an environment with nothing set.
func noEnv(string) (string, bool) { return "", false }

func testRootOptions() *RootOptions {
	return &RootOptions{Format: "text", Getenv: noEnv}
}

// fixedFetcher reports temp for every zip code.
func fixedFetcher(temp float64) weather.Fetcher {
	return weather.FetcherFunc(func(context.Context, string) (weather.Reading, error) {
		return weather.Reading{Temperature: temp}, nil
	})
}

// testDeps returns deterministic collaborators for the run command.
func testDeps(prefix string, temp float64) app.Deps {
	return app.Deps{
		Fetcher:    fixedFetcher(temp),
		Now:        testutil.NewStepClock(testutil.Epoch, 0).Now,
		SessionIDs: testutil.NewFixedSessionGenerator(prefix),
	}
}

// execute runs cmd with args and stdin, returning stdout.
func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

// recordSession runs a scripted session into a fresh history and returns
// the database path.
func recordSession(t *testing.T, script string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "history.db")

	opts := &RunOptions{RootOptions: testRootOptions(), Deps: testDeps("cli", 55)}
	_, err := execute(t, NewRunCommand(opts), script, "--db", db)
	require.NoError(t, err)
	return db
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

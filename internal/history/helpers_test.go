package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowstate/internal/codec"
	"github.com/roach88/flowstate/internal/counter"
	"github.com/roach88/flowstate/internal/devtools"
	"github.com/roach88/flowstate/internal/routing"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/testutil"
	"github.com/roach88/flowstate/internal/weather"
)

// createTestLog opens a log in a temp dir, closed on cleanup.
func createTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSlices() map[string]store.SliceReducer {
	return map[string]store.SliceReducer{
		counter.SliceName: counter.Slice(),
		routing.SliceName: routing.Slice(),
		weather.SliceName: weather.Slice(weather.Default(), weather.LastWriteWins),
	}
}

func testRegistry(t *testing.T) *codec.Registry {
	t.Helper()
	r := codec.NewRegistry()
	require.NoError(t, codec.Register[counter.Increase](r))
	require.NoError(t, codec.Register[routing.LocationChanged](r))
	require.NoError(t, codec.Register[weather.RequestWeather](r))
	require.NoError(t, codec.Register[weather.ReceiveWeather](r))
	require.NoError(t, codec.Register[weather.WeatherFailed](r))
	require.NoError(t, codec.Register[devtools.JumpToState](r))
	require.NoError(t, codec.Register[devtools.Reset](r))
	require.NoError(t, codec.Register[devtools.Commit](r))
	require.NoError(t, codec.Register[devtools.Rollback](r))
	return r
}

// newReducer returns a console-enhanced root reducer with the console's
// commit hook.
func newReducer() (store.Reducer, []store.CommitHook) {
	console := devtools.NewConsole(0)
	return console.Enhance(store.Combine(testSlices())), []store.CommitHook{console.Committed}
}

type recorded struct {
	log      *Log
	registry *codec.Registry
	recorder *Recorder
	store    *store.Store
	session  string
}

// newRecordedStore builds a console-enhanced store whose actions are
// recorded to a fresh log.
func newRecordedStore(t *testing.T, opts ...RecorderOption) *recorded {
	t.Helper()
	l := createTestLog(t)
	reg := testRegistry(t)

	opts = append([]RecorderOption{
		WithSessionGenerator(testutil.NewFixedSessionGenerator("sess")),
		WithNow(testutil.NewStepClock(time.Time{}, time.Second).Now),
		WithRecorderLogger(discardLogger()),
	}, opts...)
	rec := NewRecorder(l, reg, opts...)

	reducer, hooks := newReducer()
	s, err := store.New(reducer, nil,
		store.WithCommitHook(hooks...),
		store.WithCommitHook(rec.Committed),
		store.WithLogger(discardLogger()))
	require.NoError(t, err)

	session, err := rec.Start(context.Background(), "test", s.GetState())
	require.NoError(t, err)

	return &recorded{log: l, registry: reg, recorder: rec, store: s, session: session}
}

func (r *recorded) dispatch(t *testing.T, acts ...store.Action) {
	t.Helper()
	for _, act := range acts {
		_, err := r.store.Dispatch(act)
		require.NoError(t, err)
	}
}

func (r *recorded) replayer() *Replayer {
	return &Replayer{
		Log:      r.log,
		Registry: r.registry,
		Slices:   testSlices(),
		Reducer:  newReducer,
		Logger:   discardLogger(),
	}
}

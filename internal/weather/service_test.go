package weather_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowstate/internal/devtools"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/testutil"
	"github.com/roach88/flowstate/internal/weather"
)

type harness struct {
	store   *store.Store
	fetcher *testutil.GatedFetcher
	svc     *weather.Service
	clock   *testutil.StepClock
}

func newHarness(t *testing.T, p weather.Policy) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := store.Combine(map[string]store.SliceReducer{
		weather.SliceName: weather.Slice(weather.Default(), p),
	})
	s, err := store.New(root, nil, store.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	f := testutil.NewGatedFetcher()
	clock := testutil.NewStepClock(time.Time{}, time.Second)
	svc := &weather.Service{Fetcher: f, Now: clock.Now, Logger: logger}
	return &harness{store: s, fetcher: f, svc: svc, clock: clock}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetch_RequestThenReceive(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LastWriteWins)

	before := weather.Select(h.store.GetState())
	assert.Equal(t, weather.State{Zip: "19446"}, before)

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("19446")))

	during := weather.Select(h.store.GetState())
	assert.True(t, during.IsFetching)
	assert.Equal(t, 0.0, during.Temperature)

	require.NoError(t, h.fetcher.Resolve(ctx, 0, 55))
	require.NoError(t, h.store.Settle(ctx))

	after := weather.Select(h.store.GetState())
	assert.False(t, after.IsFetching)
	assert.Equal(t, 55.0, after.Temperature)
	assert.Equal(t, testutil.Epoch.UnixMilli(), after.ReceivedAt)
	assert.Equal(t, int64(0), h.store.Pending())
}

func TestFetch_LastWriteWinsOutOfOrder(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LastWriteWins)

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("10001")))
	require.NoError(t, h.fetcher.WaitForCalls(ctx, 1))
	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("94105")))
	require.NoError(t, h.fetcher.WaitForCalls(ctx, 2))

	// Second request answers first.
	require.NoError(t, h.fetcher.Resolve(ctx, 1, 60))
	require.NoError(t, h.store.Next(ctx))
	assert.Equal(t, 60.0, weather.Select(h.store.GetState()).Temperature)

	require.NoError(t, h.fetcher.Resolve(ctx, 0, 50))
	require.NoError(t, h.store.Next(ctx))

	final := weather.Select(h.store.GetState())
	assert.Equal(t, 50.0, final.Temperature)
	assert.Equal(t, "10001", final.Zip)
}

func TestFetch_LatestOnlyDropsStaleResponse(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LatestOnly)

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("10001")))
	require.NoError(t, h.fetcher.WaitForCalls(ctx, 1))
	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("94105")))

	require.NoError(t, h.fetcher.Resolve(ctx, 1, 60))
	require.NoError(t, h.store.Next(ctx))
	require.NoError(t, h.fetcher.Resolve(ctx, 0, 50))
	require.NoError(t, h.store.Next(ctx))

	final := weather.Select(h.store.GetState())
	assert.Equal(t, 60.0, final.Temperature)
	assert.Equal(t, "94105", final.Zip)
	assert.Equal(t, uint64(2), final.Pending)
	assert.False(t, final.IsFetching)
}

func TestFetch_Failure(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LastWriteWins)

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("19446")))
	require.NoError(t, h.fetcher.Reject(ctx, 0, errors.New("connection refused")))
	require.NoError(t, h.store.Settle(ctx))

	s := weather.Select(h.store.GetState())
	assert.False(t, s.IsFetching)
	assert.Equal(t, "connection refused", s.Error)
	assert.Equal(t, 0.0, s.Temperature)
}

func TestFetch_FailureThenSuccessClearsError(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LastWriteWins)

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("19446")))
	require.NoError(t, h.fetcher.Reject(ctx, 0, nil))
	require.NoError(t, h.store.Settle(ctx))
	require.NotEmpty(t, weather.Select(h.store.GetState()).Error)

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Refresh()))
	require.NoError(t, h.fetcher.Resolve(ctx, 1, 71.5))
	require.NoError(t, h.store.Settle(ctx))

	s := weather.Select(h.store.GetState())
	assert.Empty(t, s.Error)
	assert.Equal(t, 71.5, s.Temperature)
	assert.Equal(t, []string{"19446", "19446"}, h.fetcher.Zips())
}

func TestFetch_EmptyZip(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LastWriteWins)
	seq := h.store.Seq()

	err := h.store.RunEffect(ctx, h.svc.Fetch(""))
	assert.ErrorIs(t, err, weather.ErrNoZip)
	assert.Equal(t, seq, h.store.Seq())
}

func TestFetch_RequestNumbersIncrease(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, weather.LastWriteWins)

	var requests []uint64
	h.store.Subscribe(func() {
		requests = append(requests, weather.Select(h.store.GetState()).Pending)
	})

	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("1")))
	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("2")))
	require.NoError(t, h.store.RunEffect(ctx, h.svc.Fetch("3")))

	assert.Equal(t, []uint64{1, 2, 3}, requests)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.fetcher.Resolve(ctx, i, float64(i)))
	}
	require.NoError(t, h.store.Settle(ctx))
}

func TestFetch_RequestNumbersSurviveTimeTravel(t *testing.T) {
	ctx := testContext(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	console := devtools.NewConsole(0)
	root := store.Combine(map[string]store.SliceReducer{
		weather.SliceName: weather.Slice(weather.Default(), weather.LatestOnly),
	})
	s, err := store.New(console.Enhance(root), nil,
		store.WithLogger(logger),
		store.WithCommitHook(console.Committed))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	f := testutil.NewGatedFetcher()
	svc := &weather.Service{Fetcher: f, Now: testutil.NewStepClock(time.Time{}, time.Second).Now, Logger: logger}

	require.NoError(t, s.RunEffect(ctx, svc.Fetch("10001")))
	require.NoError(t, f.WaitForCalls(ctx, 1))
	require.NoError(t, s.RunEffect(ctx, svc.Fetch("94105")))
	require.NoError(t, f.WaitForCalls(ctx, 2))

	// Back to the state right after the first request.
	_, err = s.Dispatch(devtools.JumpToState{Index: 1})
	require.NoError(t, err)
	require.Equal(t, uint64(1), weather.Select(s.GetState()).Pending)

	var issued []uint64
	unsubscribe := s.Subscribe(func() {
		issued = append(issued, weather.Select(s.GetState()).Pending)
	})
	require.NoError(t, s.RunEffect(ctx, svc.Fetch("60601")))
	unsubscribe()
	assert.Equal(t, []uint64{3}, issued)

	// The response to request 2 is stale and is dropped.
	require.NoError(t, f.Resolve(ctx, 1, 99))
	require.NoError(t, s.Next(ctx))
	assert.True(t, weather.Select(s.GetState()).IsFetching)

	require.NoError(t, f.Resolve(ctx, 2, 42))
	require.NoError(t, s.Next(ctx))
	final := weather.Select(s.GetState())
	assert.Equal(t, 42.0, final.Temperature)
	assert.Equal(t, "60601", final.Zip)
	assert.False(t, final.IsFetching)
}

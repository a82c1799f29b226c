package history

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowstate/internal/counter"
	"github.com/roach88/flowstate/internal/devtools"
	"github.com/roach88/flowstate/internal/routing"
	"github.com/roach88/flowstate/internal/weather"
)

func TestReplay_Verifies(t *testing.T) {
	r := newRecordedStore(t, WithSnapshotEvery(3))
	ctx := context.Background()

	r.dispatch(t,
		counter.Increase{},
		weather.RequestWeather{Zip: "10001", Request: 1},
		routing.Navigate("/weather"),
		weather.ReceiveWeather{Zip: "10001", Request: 1, Temperature: 55, ReceivedAt: 1704067200000},
		counter.Increase{},
	)
	require.NoError(t, r.recorder.Flush(ctx, r.store.GetState()))

	res, err := r.replayer().Replay(ctx, r.session)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Actions)
	assert.Equal(t, 3, res.Snapshots)
	if diff := cmp.Diff(r.store.GetState().Map(), res.Final.Map()); diff != "" {
		t.Errorf("replayed state mismatch (-live +replayed):\n%s", diff)
	}
}

func TestReplay_ThroughConsoleActions(t *testing.T) {
	r := newRecordedStore(t)
	ctx := context.Background()

	r.dispatch(t,
		counter.Increase{},
		counter.Increase{},
		counter.Increase{},
		devtools.JumpToState{Index: 1},
		counter.Increase{},
		devtools.Commit{},
		counter.Increase{},
		devtools.Rollback{},
	)
	require.NoError(t, r.recorder.Flush(ctx, r.store.GetState()))

	res, err := r.replayer().Replay(ctx, r.session)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.Select(res.Final).Count)
}

func TestReplay_DetectsTamperedHash(t *testing.T) {
	r := newRecordedStore(t)
	ctx := context.Background()
	r.dispatch(t, counter.Increase{}, counter.Increase{})

	_, err := r.log.db.Exec(`UPDATE actions SET state_hash = 'bogus' WHERE seq = 2`)
	require.NoError(t, err)

	_, err = r.replayer().Replay(ctx, r.session)
	require.Error(t, err)
	assert.True(t, IsReplayMismatch(err))

	var rm *ReplayMismatchError
	require.ErrorAs(t, err, &rm)
	assert.Equal(t, int64(2), rm.Seq)
	assert.Equal(t, "state hash", rm.What)
}

func TestReplay_DetectsTamperedPayload(t *testing.T) {
	r := newRecordedStore(t)
	ctx := context.Background()
	r.dispatch(t, weather.RequestWeather{Zip: "10001", Request: 1})

	_, err := r.log.db.Exec(`UPDATE actions SET payload = '{"request":1,"zip":"99999"}' WHERE seq = 1`)
	require.NoError(t, err)

	_, err = r.replayer().Replay(ctx, r.session)
	assert.True(t, IsReplayMismatch(err))
}

func TestReplay_DetectsTamperedSnapshot(t *testing.T) {
	r := newRecordedStore(t, WithSnapshotEvery(1))
	ctx := context.Background()
	r.dispatch(t, counter.Increase{})

	// Replace snapshot 1 with the base snapshot.
	_, err := r.log.db.Exec(`UPDATE snapshots SET state = (SELECT state FROM snapshots WHERE seq = 0) WHERE seq = 1`)
	require.NoError(t, err)

	_, err = r.replayer().Replay(ctx, r.session)
	var rm *ReplayMismatchError
	require.ErrorAs(t, err, &rm)
	assert.Equal(t, "snapshot", rm.What)
}

func TestReplay_UnknownSession(t *testing.T) {
	r := newRecordedStore(t)
	_, err := r.replayer().Replay(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no base snapshot")
}

func TestReplay_Cancelled(t *testing.T) {
	r := newRecordedStore(t)
	r.dispatch(t, counter.Increase{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.replayer().Replay(ctx, r.session)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplay_SubscriberDispatchRecordedInCommitOrder(t *testing.T) {
	r := newRecordedStore(t)
	ctx := context.Background()

	// Redirect /a to /b from inside the notification pass.
	r.store.Subscribe(func() {
		if routing.Select(r.store.GetState()).Path == "/a" {
			_, err := r.store.Dispatch(routing.Navigate("/b"))
			require.NoError(t, err)
		}
	})
	r.dispatch(t, routing.Navigate("/a"))
	require.Equal(t, routing.State{Path: "/b", Previous: "/a"}, routing.Select(r.store.GetState()))
	require.NoError(t, r.recorder.Flush(ctx, r.store.GetState()))

	recs, err := r.log.Actions(ctx, r.session)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, `{"path":"/a"}`, string(recs[0].Payload))
	assert.Equal(t, `{"path":"/b"}`, string(recs[1].Payload))

	res, err := r.replayer().Replay(ctx, r.session)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Actions)
	assert.Equal(t, routing.State{Path: "/b", Previous: "/a"}, routing.Select(res.Final))
}

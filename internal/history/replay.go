package history

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/flowstate/internal/codec"
	"github.com/roach88/flowstate/internal/store"
)

// ReplayMismatchError reports the first replayed step that diverged from the
// recording.
type ReplayMismatchError struct {
	Session string
	Seq     int64
	What    string // "state hash" or "snapshot"
	Want    string
	Got     string
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay %s: %s mismatch at seq %d: want %s, got %s",
		e.Session, e.What, e.Seq, e.Want, e.Got)
}

// IsReplayMismatch reports whether err is a ReplayMismatchError.
func IsReplayMismatch(err error) bool {
	var rm *ReplayMismatchError
	return errors.As(err, &rm)
}

// ReplayResult summarizes a verified replay.
type ReplayResult struct {
	Session   string
	Actions   int
	Snapshots int
	Final     *store.State
	FinalHash string
}

// Replayer rebuilds recorded sessions.
type Replayer struct {
	Log      *Log
	Registry *codec.Registry
	Slices   map[string]store.SliceReducer

	// Reducer builds the root reducer and the commit hooks it depends on.
	// It is called once per replay so any reducer enhancer starts fresh.
	Reducer func() (store.Reducer, []store.CommitHook)

	Logger *slog.Logger
}

// Replay loads snapshot 0 of session, dispatches every recorded action into
// a new store and checks each resulting state hash and every later snapshot.
func (rp *Replayer) Replay(ctx context.Context, session string) (*ReplayResult, error) {
	logger := rp.Logger
	if logger == nil {
		logger = slog.Default()
	}

	snaps, err := rp.Log.Snapshots(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", session, err)
	}
	if len(snaps) == 0 || snaps[0].Seq != 0 {
		return nil, fmt.Errorf("replay %s: no base snapshot", session)
	}
	bySeq := make(map[int64][]byte, len(snaps))
	for _, s := range snaps {
		bySeq[s.Seq] = s.State
	}

	initial, err := codec.DecodeSnapshot(rp.Slices, snaps[0].State)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", session, err)
	}

	records, err := rp.Log.Actions(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", session, err)
	}

	reducer, hooks := rp.Reducer()
	s, err := store.New(reducer, initial,
		store.WithLogger(logger),
		store.WithCommitHook(hooks...),
	)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", session, err)
	}
	defer s.Close()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		act, err := rp.Registry.Decode(codec.Envelope{Type: rec.Type, Payload: rec.Payload})
		if err != nil {
			return nil, fmt.Errorf("replay %s seq %d: %w", session, rec.Seq, err)
		}
		if _, err := s.Dispatch(act); err != nil {
			return nil, fmt.Errorf("replay %s seq %d: %w", session, rec.Seq, err)
		}

		hash, err := codec.StateHash(s.GetState())
		if err != nil {
			return nil, fmt.Errorf("replay %s seq %d: %w", session, rec.Seq, err)
		}
		if hash != rec.StateHash {
			return nil, &ReplayMismatchError{Session: session, Seq: rec.Seq, What: "state hash", Want: rec.StateHash, Got: hash}
		}

		if want, ok := bySeq[rec.Seq]; ok {
			got, err := codec.EncodeSnapshot(s.GetState())
			if err != nil {
				return nil, fmt.Errorf("replay %s seq %d: %w", session, rec.Seq, err)
			}
			if !bytes.Equal(want, got) {
				return nil, &ReplayMismatchError{
					Session: session,
					Seq:     rec.Seq,
					What:    "snapshot",
					Want:    digest(want),
					Got:     digest(got),
				}
			}
		}
	}

	finalHash, err := codec.StateHash(s.GetState())
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", session, err)
	}

	logger.Info("replay verified", "session", session, "actions", len(records), "snapshots", len(snaps))
	return &ReplayResult{
		Session:   session,
		Actions:   len(records),
		Snapshots: len(snaps),
		Final:     s.GetState(),
		FinalHash: finalHash,
	}, nil
}

// digest is a short fingerprint of snapshot bytes for error messages.
func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}

package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/flowstate/internal/codec"
	"github.com/roach88/flowstate/internal/store"
)

// SessionIDGenerator produces session IDs.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDs.
type UUIDv7Generator struct{}

// Generate implements SessionIDGenerator.
func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 fails only if the random source does.
		return uuid.NewString()
	}
	return id.String()
}

// Recorder appends every committed action of a store to a Log.
//
// Start and Committed run on the store loop; Recorder is not safe for use
// from other goroutines.
type Recorder struct {
	log      *Log
	registry *codec.Registry
	ctx      context.Context
	gen      SessionIDGenerator
	now      func() time.Time
	logger   *slog.Logger
	every    int64

	session  string
	seq      int64
	snapSeq  int64
	failures int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSessionGenerator sets the session ID generator. Default: UUIDv7.
func WithSessionGenerator(g SessionIDGenerator) RecorderOption {
	return func(r *Recorder) { r.gen = g }
}

// WithNow sets the wall clock for session start times.
func WithNow(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithSnapshotEvery writes a snapshot after every n actions. Zero disables
// periodic snapshots; the start and Flush snapshots are always written.
func WithSnapshotEvery(n int) RecorderOption {
	return func(r *Recorder) { r.every = int64(n) }
}

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithContext sets the context used for database writes.
func WithContext(ctx context.Context) RecorderOption {
	return func(r *Recorder) { r.ctx = ctx }
}

// NewRecorder creates a recorder writing to log. Actions are encoded with reg.
func NewRecorder(log *Log, reg *codec.Registry, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		log:      log,
		registry: reg,
		ctx:      context.Background(),
		gen:      UUIDv7Generator{},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens a new session whose base is initial, written as snapshot 0.
// Actions dispatched before Start are not recorded.
func (r *Recorder) Start(ctx context.Context, label string, initial *store.State) (string, error) {
	sess := Session{
		ID:        r.gen.Generate(),
		StartedAt: r.now().UnixMilli(),
		Label:     label,
	}
	if err := r.log.WriteSession(ctx, sess); err != nil {
		return "", err
	}

	r.session = sess.ID
	r.seq = 0
	r.snapSeq = -1
	if err := r.snapshot(ctx, initial); err != nil {
		return "", err
	}

	r.logger.Info("history session started", "session", sess.ID, "label", label)
	return sess.ID, nil
}

// Session returns the current session ID, or "" before Start.
func (r *Recorder) Session() string {
	return r.session
}

// Seq returns the number of actions recorded in the current session.
func (r *Recorder) Seq() int64 {
	return r.seq
}

// Failures returns how many writes failed.
func (r *Recorder) Failures() int {
	return r.failures
}

// Committed is the store commit hook that appends act with the State it
// produced. Install it with store.WithCommitHook; it runs before subscribers,
// so actions dispatched from a subscriber are recorded after the action
// that triggered them.
//
// Write failures are logged and counted; dispatch is never failed by the
// recorder.
func (r *Recorder) Committed(act store.Action, st *store.State) {
	if r.session == "" {
		return
	}
	if err := r.record(act, st); err != nil {
		r.failures++
		r.logger.Error("history record failed",
			"error", err,
			"session", r.session,
			"action", act.Type(),
		)
	}
}

// Flush writes a snapshot of st at the current seq unless one exists.
func (r *Recorder) Flush(ctx context.Context, st *store.State) error {
	if r.session == "" || r.snapSeq == r.seq {
		return nil
	}
	return r.snapshot(ctx, st)
}

func (r *Recorder) record(act store.Action, st *store.State) error {
	env, err := r.registry.Encode(act)
	if err != nil {
		return err
	}

	seq := r.seq + 1
	id, err := codec.ActionID(r.session, seq, env)
	if err != nil {
		return err
	}
	hash, err := codec.StateHash(st)
	if err != nil {
		return err
	}

	if err := r.log.AppendAction(r.ctx, Record{
		SessionID: r.session,
		Seq:       seq,
		ID:        id,
		Type:      env.Type,
		Payload:   env.Payload,
		StateHash: hash,
	}); err != nil {
		return err
	}
	r.seq = seq

	if r.every > 0 && seq%r.every == 0 {
		return r.snapshot(r.ctx, st)
	}
	return nil
}

func (r *Recorder) snapshot(ctx context.Context, st *store.State) error {
	data, err := codec.EncodeSnapshot(st)
	if err != nil {
		return err
	}
	if err := r.log.WriteSnapshot(ctx, Snapshot{SessionID: r.session, Seq: r.seq, State: data}); err != nil {
		return fmt.Errorf("snapshot %d: %w", r.seq, err)
	}
	r.snapSeq = r.seq
	return nil
}

package history

import (
	"context"
	"fmt"
)

// WriteSession inserts a session. Writing the same ID twice is a no-op.
func (l *Log) WriteSession(ctx context.Context, s Session) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, label)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, s.ID, s.StartedAt, s.Label)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// AppendAction inserts an action record. A record whose (session, seq) or
// ID already exists is silently ignored.
//
// The session must exist (foreign key constraint).
func (l *Log) AppendAction(ctx context.Context, r Record) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO actions (session_id, seq, id, type, payload, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, r.SessionID, r.Seq, r.ID, r.Type, string(r.Payload), r.StateHash)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// WriteSnapshot stores a snapshot. An existing snapshot at the same
// (session, seq) is kept.
func (l *Log) WriteSnapshot(ctx context.Context, s Snapshot) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, seq, state)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, s.SessionID, s.Seq, s.State)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

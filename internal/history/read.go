package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Sessions returns every session, oldest first.
// Returns an empty slice (not nil) if there are none.
func (l *Log) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, label
		FROM sessions
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.Label); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns one session. Returns sql.ErrNoRows if not found.
func (l *Log) ReadSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, label FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.StartedAt, &s.Label)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// LatestSession returns the most recently started session.
// Returns sql.ErrNoRows if the log is empty.
func (l *Log) LatestSession(ctx context.Context) (Session, error) {
	var s Session
	err := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, label
		FROM sessions
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&s.ID, &s.StartedAt, &s.Label)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// Actions returns the actions of a session ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (l *Log) Actions(ctx context.Context, session string) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, seq, id, type, payload, state_hash
		FROM actions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.SessionID, &r.Seq, &r.ID, &r.Type, &payload, &r.StateHash); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// CountByType returns how many actions of each type a session holds.
func (l *Log) CountByType(ctx context.Context, session string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM actions WHERE session_id = ? GROUP BY type
	`, session)
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Snapshots returns the snapshots of a session ordered by seq.
func (l *Log) Snapshots(ctx context.Context, session string) ([]Snapshot, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, seq, state
		FROM snapshots
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.SessionID, &s.Seq, &s.State); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// LatestSnapshot returns the snapshot with the highest seq.
// Returns sql.ErrNoRows if the session has none.
func (l *Log) LatestSnapshot(ctx context.Context, session string) (Snapshot, error) {
	var s Snapshot
	err := l.db.QueryRowContext(ctx, `
		SELECT session_id, seq, state
		FROM snapshots
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, session).Scan(&s.SessionID, &s.Seq, &s.State)
	if err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return s, nil
}

package history

import "encoding/json"

// Session is one recorded run of a store.
type Session struct {
	ID        string `json:"id"`
	StartedAt int64  `json:"started_at"`
	Label     string `json:"label,omitempty"`
}

// Record is one committed action.
type Record struct {
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
}

// Snapshot is the msgpack-encoded state tree after Seq actions.
type Snapshot struct {
	SessionID string
	Seq       int64
	State     []byte
}

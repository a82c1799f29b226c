package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows a future
// change of algorithm.
const (
	DomainAction = "flowstate/action/v1"
	DomainState  = "flowstate/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionID identifies the seq-th action of a session. Identical actions at
// different positions get different IDs.
func ActionID(session string, seq int64, env Envelope) (string, error) {
	canonical, err := MarshalCanonical(struct {
		Session string   `json:"session"`
		Seq     int64    `json:"seq"`
		Action  Envelope `json:"action"`
	}{session, seq, env})
	if err != nil {
		return "", fmt.Errorf("action id: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// StateHash hashes the canonical JSON of a state tree.
func StateHash(state any) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// Package history is a persistent log of store sessions.
//
// A session is one run of a store. Every committed action is appended with
// its canonical JSON payload and the hash of the state it produced;
// msgpack snapshots of the whole tree are written at the start, periodically
// and on Flush. Replay folds a session's actions through a fresh reducer and
// fails at the first step whose state hash or snapshot differs.
//
// The log is never used to restore a running store.
package history

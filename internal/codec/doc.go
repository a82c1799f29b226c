// Package codec turns actions and states into bytes with stable identity.
//
// Canonical JSON (RFC 8785 key order, NFC strings, no HTML escaping) is the
// only encoding used for content hashes. The Registry maps action type
// strings back to Go types so recorded actions can be replayed. State
// snapshots use msgpack with sorted map keys so equal states encode to
// equal bytes.
package codec

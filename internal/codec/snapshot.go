package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/flowstate/internal/store"
)

// EncodeSnapshot encodes a state tree as msgpack. Map keys are sorted and
// struct fields use their json names, so equal trees give equal bytes.
func EncodeSnapshot(st *store.State) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")

	if err := enc.Encode(st.Map()); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot rebuilds a state tree from msgpack using the declared
// slices to restore each slice's Go type.
func DecodeSnapshot(slices map[string]store.SliceReducer, data []byte) (*store.State, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	var generic map[string]any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	raw := make(map[string]json.RawMessage, len(generic))
	for key, v := range generic {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot slice %q: %w", key, err)
		}
		raw[key] = b
	}

	st, err := store.DecodeState(slices, raw)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return st, nil
}

package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/flowstate/internal/store"
)

// ErrUnknownAction is returned when decoding an unregistered action type.
var ErrUnknownAction = errors.New("unknown action type")

// Envelope is the serialized form of an action.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type decodeFunc func(payload []byte) (store.Action, error)

// Registry maps action type strings to Go types.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	decoder map[string]decodeFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoder: make(map[string]decodeFunc)}
}

// Register adds A to r under the type string of its zero value.
// Registering the same type string twice is an error.
func Register[A store.Action](r *Registry) error {
	var zero A
	typ := zero.Type()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.decoder[typ]; dup {
		return fmt.Errorf("action type %q already registered", typ)
	}
	r.decoder[typ] = func(payload []byte) (store.Action, error) {
		var act A
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &act); err != nil {
				return nil, fmt.Errorf("decode %s: %w", typ, err)
			}
		}
		return act, nil
	}
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister[A store.Action](r *Registry) {
	if err := Register[A](r); err != nil {
		panic(err)
	}
}

// Types returns the registered type strings in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.decoder))
	for t := range r.decoder {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Known reports whether typ is registered.
func (r *Registry) Known(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoder[typ]
	return ok
}

// Encode wraps act in an Envelope with a canonical JSON payload.
func (r *Registry) Encode(act store.Action) (Envelope, error) {
	if act == nil {
		return Envelope{}, fmt.Errorf("encode: action is nil")
	}
	if !r.Known(act.Type()) {
		return Envelope{}, fmt.Errorf("encode %s: %w", act.Type(), ErrUnknownAction)
	}
	payload, err := MarshalCanonical(act)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", act.Type(), err)
	}
	return Envelope{Type: act.Type(), Payload: payload}, nil
}

// Decode rebuilds the action held by env.
func (r *Registry) Decode(env Envelope) (store.Action, error) {
	r.mu.RLock()
	decode, ok := r.decoder[env.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("decode %q: %w", env.Type, ErrUnknownAction)
	}
	return decode(env.Payload)
}

// Parse decodes a JSON envelope such as {"type":"increase"}.
func (r *Registry) Parse(data []byte) (store.Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse action: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("parse action: missing type")
	}
	return r.Decode(env)
}

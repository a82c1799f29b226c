package store

import (
	"encoding/json"
	"log/slog"
	"sort"
)

// State is an immutable tree of slices keyed by slice name.
//
// The slice map is never exposed; every transition builds a new State or
// returns the previous pointer unchanged, so consumers can detect "nothing
// changed" with a pointer comparison.
type State struct {
	slices map[string]any
}

// NewState creates a State from slice values. The map is copied.
func NewState(slices map[string]any) *State {
	m := make(map[string]any, len(slices))
	for k, v := range slices {
		m[k] = v
	}
	return &State{slices: m}
}

// Get returns the value of a slice. A nil State has no slices.
func (s *State) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.slices[key]
	return v, ok
}

// Keys returns the slice names in sorted order.
func (s *State) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.slices))
	for k := range s.slices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of slices.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slices)
}

// With returns a copy of the State with one slice replaced.
func (s *State) With(key string, value any) *State {
	m := s.Map()
	m[key] = value
	return &State{slices: m}
}

// Map returns a shallow copy of the slice map.
func (s *State) Map() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	m := make(map[string]any, len(s.slices))
	for k, v := range s.slices {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the tree as an object keyed by slice name.
func (s *State) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.slices)
}

// LogValue renders the tree as JSON in structured logs.
func (s *State) LogValue() slog.Value {
	data, err := s.MarshalJSON()
	if err != nil {
		return slog.StringValue("<unencodable state>")
	}
	return slog.StringValue(string(data))
}

// Select returns the slice stored under key as S.
// The boolean is false when the slice is absent or has another type.
func Select[S any](s *State, key string) (S, bool) {
	var zero S
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(S)
	if !ok {
		return zero, false
	}
	return typed, true
}

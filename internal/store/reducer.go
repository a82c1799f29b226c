package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Reducer computes the next whole State from the current State and an action.
// Reducers must be pure; the store does not enforce it.
type Reducer func(state *State, act Action) *State

// SliceReducer is a type-erased reducer for one slice of the tree.
type SliceReducer interface {
	// Default returns the slice value used when the tree has none.
	Default() any

	// Reduce applies act to prev. Absent or mistyped prev is replaced by
	// the default first. changed reports whether next differs from prev.
	Reduce(prev any, act Action) (next any, changed bool)

	// Decode parses a JSON slice value, starting from the default.
	Decode(data []byte) (any, error)
}

// Slice declares a slice with its default value and reducer.
//
// S must be comparable: an unchanged slice is detected with ==, which is the
// value-typed equivalent of returning the same reference.
func Slice[S comparable](def S, reduce func(S, Action) S) SliceReducer {
	return sliceReducer[S]{def: def, reduce: reduce}
}

type sliceReducer[S comparable] struct {
	def    S
	reduce func(S, Action) S
}

func (r sliceReducer[S]) Default() any { return r.def }

func (r sliceReducer[S]) Reduce(prev any, act Action) (any, bool) {
	cur, ok := prev.(S)
	if !ok {
		cur = r.def
	}
	next := r.reduce(cur, act)
	return next, !ok || next != cur
}

func (r sliceReducer[S]) Decode(data []byte) (any, error) {
	v := r.def
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Combine composes per-slice reducers into one whole-state reducer.
//
// Every slice reducer sees every action, in sorted key order. The result holds
// exactly the declared slices; keys the map does not declare are dropped. When
// no slice changed the input State pointer is returned as is.
func Combine(slices map[string]SliceReducer) Reducer {
	keys := make([]string, 0, len(slices))
	specs := make(map[string]SliceReducer, len(slices))
	for k, r := range slices {
		keys = append(keys, k)
		specs[k] = r
	}
	sort.Strings(keys)

	return func(state *State, act Action) *State {
		changed := state == nil || state.Len() != len(keys)
		next := make(map[string]any, len(keys))
		for _, key := range keys {
			prev, _ := state.Get(key)
			val, sliceChanged := specs[key].Reduce(prev, act)
			next[key] = val
			changed = changed || sliceChanged
		}
		if !changed {
			return state
		}
		return &State{slices: next}
	}
}

// DefaultState builds a State holding every slice's default.
func DefaultState(slices map[string]SliceReducer) *State {
	m := make(map[string]any, len(slices))
	for k, r := range slices {
		m[k] = r.Default()
	}
	return &State{slices: m}
}

// DecodeState builds a State from raw JSON slice values. Slices missing from
// raw keep their defaults; raw keys without a declared slice are an error.
func DecodeState(slices map[string]SliceReducer, raw map[string]json.RawMessage) (*State, error) {
	st := DefaultState(slices)
	for key, data := range raw {
		r, ok := slices[key]
		if !ok {
			return nil, fmt.Errorf("unknown slice %q", key)
		}
		v, err := r.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("slice %q: %w", key, err)
		}
		st.slices[key] = v
	}
	return st, nil
}

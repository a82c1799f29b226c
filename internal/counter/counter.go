// Package counter is the counter slice: a count raised by Increase.
package counter

import "github.com/roach88/flowstate/internal/store"

// SliceName is the key of the counter slice in the state tree.
const SliceName = "counter"

// State is the counter slice.
type State struct {
	Count int `json:"count"`
}

// Action is the closed set of counter actions.
type Action interface {
	store.Action
	counterAction()
}

// Increase adds one to the count.
type Increase struct{}

// Type implements store.Action.
func (Increase) Type() string { return "increase" }

func (Increase) counterAction() {}

// Reduce applies counter actions; anything else returns s unchanged.
func Reduce(s State, act store.Action) State {
	a, ok := act.(Action)
	if !ok {
		return s
	}
	switch a.(type) {
	case Increase:
		return State{Count: s.Count + 1}
	}
	return s
}

// Slice declares the counter slice with its default of zero.
func Slice() store.SliceReducer {
	return store.Slice(State{}, Reduce)
}

// Select reads the counter slice, falling back to the default.
func Select(st *store.State) State {
	s, _ := store.Select[State](st, SliceName)
	return s
}

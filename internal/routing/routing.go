// Package routing is the routing slice: the current location path.
package routing

import "github.com/roach88/flowstate/internal/store"

// SliceName is the key of the routing slice in the state tree.
const SliceName = "routing"

// DefaultPath is the location before any navigation.
const DefaultPath = "/"

// State is the routing slice.
type State struct {
	Path     string `json:"path"`
	Previous string `json:"previous,omitempty"`
}

// Action is the closed set of routing actions.
type Action interface {
	store.Action
	routingAction()
}

// LocationChanged records a navigation to Path.
type LocationChanged struct {
	Path string `json:"path"`
}

// Type implements store.Action.
func (LocationChanged) Type() string { return "@@router/LOCATION_CHANGE" }

func (LocationChanged) routingAction() {}

// Navigate builds the action for moving to path. An empty path means "/".
func Navigate(path string) LocationChanged {
	if path == "" {
		path = DefaultPath
	}
	return LocationChanged{Path: path}
}

// Reduce applies routing actions. Navigating to the current path is a no-op.
func Reduce(s State, act store.Action) State {
	a, ok := act.(Action)
	if !ok {
		return s
	}
	switch a := a.(type) {
	case LocationChanged:
		if a.Path == s.Path {
			return s
		}
		return State{Path: a.Path, Previous: s.Path}
	}
	return s
}

// Slice declares the routing slice, starting at DefaultPath.
func Slice() store.SliceReducer {
	return store.Slice(State{Path: DefaultPath}, Reduce)
}

// Select reads the routing slice, falling back to the default.
func Select(st *store.State) State {
	s, ok := store.Select[State](st, SliceName)
	if !ok {
		return State{Path: DefaultPath}
	}
	return s
}

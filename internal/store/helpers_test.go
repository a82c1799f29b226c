package store

import (
	"io"
	"log/slog"
)

type incr struct{}

func (incr) Type() string { return "test/incr" }

type rename struct{ Name string }

func (rename) Type() string { return "test/rename" }

type noop struct{}

func (noop) Type() string { return "test/noop" }

type countState struct {
	Count int `json:"count"`
}

type nameState struct {
	Name string `json:"name"`
}

func reduceCount(s countState, act Action) countState {
	switch act.(type) {
	case incr:
		return countState{Count: s.Count + 1}
	default:
		return s
	}
}

func reduceName(s nameState, act Action) nameState {
	switch a := act.(type) {
	case rename:
		if a.Name == s.Name {
			return s
		}
		return nameState{Name: a.Name}
	default:
		return s
	}
}

func testSlices() map[string]SliceReducer {
	return map[string]SliceReducer{
		"count": Slice(countState{}, reduceCount),
		"name":  Slice(nameState{Name: "anon"}, reduceName),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore creates a store over testSlices with logging discarded.
func newTestStore(t interface{ Fatalf(string, ...any) }, opts ...Option) *Store {
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	s, err := New(Combine(testSlices()), nil, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

func countOf(s *State) int {
	c, _ := Select[countState](s, "count")
	return c.Count
}

// Package devtools is a time-travel console for a store.
//
// Console.Enhance wraps the root reducer. Every ordinary action is applied
// and the resulting state appended to a timeline; console actions move a
// cursor over that timeline instead of reaching the wrapped reducer.
package devtools

import (
	"sync"

	"github.com/roach88/flowstate/internal/store"
)

// Action is the closed set of console actions.
type Action interface {
	store.Action
	consoleAction()
}

// JumpToState re-exposes the state recorded at Index. An out of range index
// is a no-op.
type JumpToState struct {
	Index int `json:"index"`
}

// Reset returns to the first state the console recorded and drops the rest,
// including any commit.
type Reset struct{}

// Commit makes the current state the new base and drops the timeline.
type Commit struct{}

// Rollback returns to the last committed base and drops the timeline.
type Rollback struct{}

func (JumpToState) Type() string { return "@@devtools/JUMP_TO_STATE" }
func (Reset) Type() string       { return "@@devtools/RESET" }
func (Commit) Type() string      { return "@@devtools/COMMIT" }
func (Rollback) Type() string    { return "@@devtools/ROLLBACK" }

func (JumpToState) consoleAction() {}
func (Reset) consoleAction()       {}
func (Commit) consoleAction()      {}
func (Rollback) consoleAction()    {}

// Entry is one point of the timeline.
type Entry struct {
	Index  int
	Action string
	State  *store.State
}

// Console records the timeline of a store.
//
// The reducer returned by Enhance only stages timeline changes; Committed
// applies them once the store commits. Install both:
//
//	store.New(c.Enhance(root), nil, store.WithCommitHook(c.Committed))
//
// A dispatch the store rejects never reaches the timeline.
//
// Thread-safety: the reducer and Committed run on the store loop; Entries and
// Cursor may be read from any goroutine.
type Console struct {
	mu     sync.Mutex
	maxAge int
	tl     timeline

	// Loop owner only.
	staged *timeline
}

type timeline struct {
	initial *Entry
	entries []Entry
	cursor  int
}

// NewConsole creates a console keeping at most maxAge entries. When the
// limit is exceeded the oldest entry is committed away. Zero means no limit.
func NewConsole(maxAge int) *Console {
	if maxAge == 1 {
		maxAge = 2
	}
	return &Console{maxAge: maxAge}
}

// Enhance wraps r so every action passes through the console.
func (c *Console) Enhance(r store.Reducer) store.Reducer {
	return func(st *store.State, act store.Action) *store.State {
		c.staged = nil
		tl := c.committed()

		var next *store.State
		if a, ok := act.(Action); ok {
			next = tl.apply(st, a)
		} else {
			next = r(st, act)
			if next == nil {
				return nil
			}
			tl.record(act.Type(), next, c.maxAge)
		}

		c.staged = &tl
		return next
	}
}

// Committed is the store commit hook that makes the staged timeline current.
func (c *Console) Committed(store.Action, *store.State) {
	if c.staged == nil {
		return
	}
	c.mu.Lock()
	c.tl = *c.staged
	c.mu.Unlock()
	c.staged = nil
}

// committed returns a copy of the current timeline that the caller may change.
func (c *Console) committed() timeline {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl := c.tl
	tl.entries = make([]Entry, len(c.tl.entries))
	copy(tl.entries, c.tl.entries)
	return tl
}

func (tl *timeline) record(typ string, st *store.State, maxAge int) {
	if tl.initial == nil {
		tl.initial = &Entry{Index: 0, Action: typ, State: st}
	}

	// A new action after a jump discards the future.
	if len(tl.entries) > 0 && tl.cursor < len(tl.entries)-1 {
		tl.entries = tl.entries[:tl.cursor+1]
	}
	tl.entries = append(tl.entries, Entry{Action: typ, State: st})

	if maxAge > 0 && len(tl.entries) > maxAge {
		tl.entries = tl.entries[len(tl.entries)-maxAge:]
	}
	tl.renumber()
	tl.cursor = len(tl.entries) - 1
}

func (tl *timeline) apply(st *store.State, act Action) *store.State {
	if len(tl.entries) == 0 {
		return st
	}

	switch a := act.(type) {
	case JumpToState:
		if a.Index < 0 || a.Index >= len(tl.entries) {
			return st
		}
		tl.cursor = a.Index
		return tl.entries[a.Index].State

	case Reset:
		tl.entries = []Entry{*tl.initial}
		tl.cursor = 0
		return tl.initial.State

	case Commit:
		cur := tl.entries[tl.cursor]
		cur.Action = a.Type()
		tl.entries = []Entry{cur}
		tl.renumber()
		tl.cursor = 0
		return cur.State

	case Rollback:
		tl.entries = tl.entries[:1]
		tl.cursor = 0
		return tl.entries[0].State
	}
	return st
}

func (tl *timeline) renumber() {
	for i := range tl.entries {
		tl.entries[i].Index = i
	}
}

// Entries returns a copy of the timeline.
func (c *Console) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.tl.entries))
	copy(out, c.tl.entries)
	return out
}

// Cursor returns the index of the state currently exposed.
func (c *Console) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tl.cursor
}

// Len returns the number of timeline entries.
func (c *Console) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tl.entries)
}

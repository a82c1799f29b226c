// Package view binds store state to templ components.
//
// Views are plain functions of an immutable props value and a set of
// dispatch callbacks. Connect re-derives props after every store
// notification and re-renders only when they changed.
package view

import (
	"context"
	"sync"

	"github.com/a-h/templ"

	"github.com/roach88/flowstate/internal/store"
)

// Source is the store surface a binding needs.
type Source interface {
	GetState() *store.State
	Subscribe(fn func()) (unsubscribe func())
	Dispatcher
}

// Dispatcher is handed to dispatch mappers.
type Dispatcher interface {
	Dispatch(act store.Action) (store.Action, error)
	RunEffect(ctx context.Context, eff store.Effect) error
}

// Binding is a live connection between a store and one view.
type Binding[P comparable, D any] struct {
	src      Source
	mapState func(*store.State) P
	render   func(P, D) templ.Component
	sink     func(templ.Component)
	dispatch D

	mu      sync.Mutex
	props   P
	renders int
	closed  bool
	unsub   func()
}

// Connect derives props with mapState, builds the dispatch value once with
// mapDispatch, renders immediately and then after every notification whose
// props differ from the last rendered ones. Each render is passed to sink.
//
// sink runs without the binding's lock held, so it may dispatch.
func Connect[P comparable, D any](
	src Source,
	mapState func(*store.State) P,
	mapDispatch func(Dispatcher) D,
	render func(P, D) templ.Component,
	sink func(templ.Component),
) *Binding[P, D] {
	b := &Binding[P, D]{
		src:      src,
		mapState: mapState,
		render:   render,
		sink:     sink,
		dispatch: mapDispatch(src),
	}

	props := mapState(src.GetState())
	b.props = props
	b.renders = 1
	b.sink(b.render(props, b.dispatch))

	unsub := src.Subscribe(b.update)
	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()
	return b
}

func (b *Binding[P, D]) update() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	next := b.mapState(b.src.GetState())
	if next == b.props {
		b.mu.Unlock()
		return
	}
	b.props = next
	b.renders++
	b.mu.Unlock()

	b.sink(b.render(next, b.dispatch))
}

// Props returns the last rendered props.
func (b *Binding[P, D]) Props() P {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.props
}

// Dispatch returns the dispatch value handed to every render.
func (b *Binding[P, D]) Dispatch() D {
	return b.dispatch
}

// Renders returns how many times the view was rendered.
func (b *Binding[P, D]) Renders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders
}

// Close unsubscribes the binding. Notifications after Close are ignored.
func (b *Binding[P, D]) Close() {
	b.mu.Lock()
	unsub := b.unsub
	b.unsub = nil
	b.closed = true
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

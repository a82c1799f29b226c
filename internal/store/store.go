package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store is the state container: it holds the current State, the composed
// reducer, the middleware-wrapped dispatch and the subscriber list.
//
// Construct exactly one Store at process entry and pass it to every consumer.
//
// INVARIANTS:
//   - current is replaced only by a completed raw dispatch
//   - a failed dispatch (re-entrant, panicking or nil-returning reducer) commits nothing
//   - commit hooks run after the commit and before any subscriber
//   - subscribers are notified from a snapshot taken after the commit
type Store struct {
	reducer    atomic.Pointer[Reducer]
	current    atomic.Pointer[State]
	dispatch   DispatchFunc
	middleware []Middleware
	hooks      []CommitHook
	clock      *Clock
	queue      *eventQueue
	logger     *slog.Logger
	inflight   atomic.Int64

	// Loop owner only.
	dispatching bool
	violation   *DispatchError

	mu     sync.Mutex
	subs   []*subscription
	nextID uint64
}

type subscription struct {
	id uint64
	fn func()
}

// Option configures a Store.
type Option func(*Store)

// WithMiddleware installs middleware. The first one is outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(s *Store) {
		s.middleware = append(s.middleware, middlewares...)
	}
}

// CommitHook observes a committed action and the State it produced.
//
// Hooks run on the loop after the commit and before subscribers are
// notified, so they see commits in commit order even when a subscriber
// dispatches. A hook must not dispatch.
type CommitHook func(act Action, st *State)

// WithCommitHook adds hooks, called in the order given.
func WithCommitHook(hooks ...CommitHook) Option {
	return func(s *Store) {
		for _, h := range hooks {
			if h != nil {
				s.hooks = append(s.hooks, h)
			}
		}
	}
}

// WithClock sets the logical clock used to stamp commits.
func WithClock(c *Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger for loop and task diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store and dispatches Init through the raw dispatch, so every
// slice holds a value before the first caller reads the State.
//
// A nil initial State is treated as empty.
func New(reducer Reducer, initial *State, opts ...Option) (*Store, error) {
	if reducer == nil {
		return nil, fmt.Errorf("store: reducer is required")
	}
	if initial == nil {
		initial = NewState(nil)
	}

	s := &Store{
		clock:  NewClock(),
		queue:  newEventQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.reducer.Store(&reducer)
	s.current.Store(initial)
	s.dispatch = Chain(storeAPI{s}, s.rawDispatch, s.middleware...)

	if _, err := s.rawDispatch(Init{}); err != nil {
		return nil, fmt.Errorf("store: initialize: %w", err)
	}
	return s, nil
}

// GetState returns the latest committed State.
// Safe from any goroutine.
func (s *Store) GetState() *State {
	return s.current.Load()
}

// Dispatch runs act through the middleware chain and the reducer, commits
// the result and notifies subscribers. It returns whatever the chain resolves
// to, normally act itself.
//
// Dispatching from inside a reducer fails that call and the enclosing dispatch.
func (s *Store) Dispatch(act Action) (Action, error) {
	if act == nil {
		return nil, &DispatchError{Code: ErrCodeNilAction, Message: "action is nil"}
	}
	if s.dispatching {
		return nil, s.rejectReentrant(act)
	}
	return s.dispatch(act)
}

// RunEffect runs eff on the calling goroutine. Actions it dispatches go
// through the full middleware chain; Tasks it starts report back via the queue.
func (s *Store) RunEffect(ctx context.Context, eff Effect) error {
	if eff == nil {
		return &DispatchError{Code: ErrCodeNilAction, Message: "effect is nil"}
	}
	if s.dispatching {
		return s.rejectReentrant(nil)
	}
	return eff(ctx, effectAPI{ctx: ctx, s: s})
}

// Subscribe registers fn to be called after every completed dispatch, even if
// the State pointer did not change. The returned func unsubscribes; calling it
// more than once is harmless.
//
// A notification pass uses the list as it was when the pass started, so
// (un)subscribing during a pass only affects later passes.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &subscription{id: s.nextID, fn: fn}

	// Copy-on-write: snapshots held by an in-flight pass stay intact.
	subs := make([]*subscription, len(s.subs), len(s.subs)+1)
	copy(subs, s.subs)
	s.subs = append(subs, sub)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub.id) })
	}
}

// ReplaceReducer swaps the reducer and dispatches Replace so slices added by
// the new reducer initialize.
func (s *Store) ReplaceReducer(r Reducer) error {
	if r == nil {
		return fmt.Errorf("store: reducer is required")
	}
	if s.dispatching {
		return s.rejectReentrant(Replace{})
	}
	s.reducer.Store(&r)
	_, err := s.rawDispatch(Replace{})
	return err
}

// Clock returns the logical clock that stamps commits.
func (s *Store) Clock() *Clock {
	return s.clock
}

// Seq returns the sequence number of the last commit.
func (s *Store) Seq() int64 {
	return s.clock.Current()
}

// Enqueue queues a plain action for the loop. Safe from any goroutine.
// Returns false once the store is closed.
func (s *Store) Enqueue(act Action) bool {
	return s.queue.Enqueue(Event{Type: EventTypeAction, Action: act})
}

// EnqueueEffect queues an effect for the loop. Safe from any goroutine.
func (s *Store) EnqueueEffect(eff Effect) bool {
	return s.queue.Enqueue(Event{Type: EventTypeEffect, Effect: eff})
}

// Pending returns the number of Tasks still running.
func (s *Store) Pending() int64 {
	return s.inflight.Load()
}

// QueueLen returns the number of queued events.
func (s *Store) QueueLen() int {
	return s.queue.Len()
}

// Close stops accepting queued events. Results of Tasks that finish later
// are dropped.
func (s *Store) Close() {
	s.queue.Close()
}

// Run processes queued events until ctx is cancelled or the store is closed
// and drained. Processing errors are logged and the loop continues.
func (s *Store) Run(ctx context.Context) error {
	s.logger.Info("store loop starting")

	for {
		if ev, ok := s.queue.TryDequeue(); ok {
			if err := s.process(ctx, ev); err != nil {
				s.logEventError(ev, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("store loop stopping: context cancelled")
			return ctx.Err()
		case <-s.queue.Wait():
			if s.queue.Closed() && s.queue.Len() == 0 {
				s.logger.Info("store loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Next blocks until one queued event is available, processes it and returns
// its error.
func (s *Store) Next(ctx context.Context) error {
	for {
		if ev, ok := s.queue.TryDequeue(); ok {
			return s.process(ctx, ev)
		}
		if s.queue.Closed() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Wait():
		}
	}
}

// Settle processes queued events until no Task is running and the queue is
// empty. Errors are logged, collected and returned joined.
func (s *Store) Settle(ctx context.Context) error {
	var errs []error
	for {
		if ev, ok := s.queue.TryDequeue(); ok {
			if err := s.process(ctx, ev); err != nil {
				s.logEventError(ev, err)
				errs = append(errs, err)
			}
			continue
		}

		// Tasks enqueue before they decrement inflight, so a zero count
		// means every result is already in the queue.
		if s.inflight.Load() == 0 && s.queue.Len() == 0 {
			return errors.Join(errs...)
		}
		if s.queue.Closed() {
			return errors.Join(append(errs, ErrClosed)...)
		}

		select {
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		case <-s.queue.Wait():
		}
	}
}

func (s *Store) rawDispatch(act Action) (Action, error) {
	if s.dispatching {
		return nil, s.rejectReentrant(act)
	}

	next, err := s.reduce(act)
	if err != nil {
		return nil, err
	}

	s.current.Store(next)
	s.clock.Next()
	for _, h := range s.hooks {
		h(act, next)
	}
	s.notify()
	return act, nil
}

// reduce runs the reducer under the re-entrancy guard.
func (s *Store) reduce(act Action) (next *State, err error) {
	reducer := *s.reducer.Load()
	prev := s.current.Load()

	s.dispatching = true
	s.violation = nil
	defer func() {
		violation := s.violation
		s.dispatching = false
		s.violation = nil

		if r := recover(); r != nil {
			next, err = nil, newPanicError(act, r)
			return
		}
		if violation != nil {
			next, err = nil, violation
		}
	}()

	next = reducer(prev, act)
	if next == nil {
		return nil, &DispatchError{
			Code:       ErrCodeNilState,
			ActionType: act.Type(),
			Message:    "reducer returned nil state",
		}
	}
	return next, nil
}

func (s *Store) rejectReentrant(act Action) *DispatchError {
	err := newReentrantError(act)
	if s.violation == nil {
		s.violation = err
	}
	s.logger.Error("dispatch from inside reducer rejected", "action", actionType(act))
	return err
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.id != id {
			subs = append(subs, sub)
		}
	}
	s.subs = subs
}

// spawn runs task on its own goroutine and queues its result.
func (s *Store) spawn(ctx context.Context, task Task) {
	s.inflight.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("task panicked", "panic", r)
			}
			s.inflight.Add(-1)
			s.queue.Notify()
		}()

		act := task(ctx)
		if act == nil {
			return
		}
		if !s.queue.Enqueue(Event{Type: EventTypeAction, Action: act}) {
			s.logger.Warn("dropping task result: store closed", "action", act.Type())
		}
	}()
}

func (s *Store) process(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventTypeAction:
		if ev.Action == nil {
			return fmt.Errorf("action event missing action")
		}
		_, err := s.Dispatch(ev.Action)
		return err

	case EventTypeEffect:
		if ev.Effect == nil {
			return fmt.Errorf("effect event missing effect")
		}
		return s.RunEffect(ctx, ev.Effect)

	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

func (s *Store) logEventError(ev Event, err error) {
	switch ev.Type {
	case EventTypeAction:
		s.logger.Error("queued action failed",
			"error", err,
			"action", actionType(ev.Action),
		)
	case EventTypeEffect:
		s.logger.Error("queued effect failed", "error", err)
	default:
		s.logger.Error("event processing failed",
			"error", err,
			"event_type", ev.Type,
		)
	}
}

type storeAPI struct {
	s *Store
}

func (a storeAPI) Dispatch(act Action) (Action, error) { return a.s.Dispatch(act) }

func (a storeAPI) GetState() *State { return a.s.GetState() }

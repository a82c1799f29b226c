package store

import "context"

// Effect is a deferred unit of work run in place of a plain action.
//
// Effects never reach a reducer. They dispatch zero or more plain actions
// through api, synchronously or from a Task.
type Effect func(ctx context.Context, api EffectAPI) error

// Task runs off the loop and returns the action to dispatch once it is done.
// A nil action dispatches nothing.
type Task func(ctx context.Context) Action

// EffectAPI is what an Effect may use.
type EffectAPI interface {
	// Dispatch sends a plain action through the full middleware chain.
	Dispatch(act Action) (Action, error)

	// GetState returns the latest committed State.
	GetState() *State

	// Go starts task on its own goroutine. Its result is queued onto the
	// store's loop and dispatched by Run, Next or Settle.
	Go(task Task)
}

type effectAPI struct {
	ctx context.Context
	s   *Store
}

func (a effectAPI) Dispatch(act Action) (Action, error) { return a.s.Dispatch(act) }

func (a effectAPI) GetState() *State { return a.s.GetState() }

func (a effectAPI) Go(task Task) { a.s.spawn(a.ctx, task) }

// Sequence runs effects in order and stops at the first error.
func Sequence(effects ...Effect) Effect {
	return func(ctx context.Context, api EffectAPI) error {
		for _, eff := range effects {
			if err := eff(ctx, api); err != nil {
				return err
			}
		}
		return nil
	}
}

// Just wraps a plain action as an Effect that dispatches it.
func Just(act Action) Effect {
	return func(_ context.Context, api EffectAPI) error {
		_, err := api.Dispatch(act)
		return err
	}
}

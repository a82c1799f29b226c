package store

import (
	"log/slog"
	"time"
)

// DispatchFunc dispatches a plain action and returns what the chain resolves to.
type DispatchFunc func(act Action) (Action, error)

// API is the store surface handed to middleware.
// Dispatch goes through the whole chain again, from the outermost middleware.
type API interface {
	Dispatch(act Action) (Action, error)
	GetState() *State
}

// Middleware wraps the next dispatch function.
type Middleware func(api API) func(next DispatchFunc) DispatchFunc

// Chain composes middleware around base, right to left, so the first
// middleware in the list sees the dispatch first and base runs last.
func Chain(api API, base DispatchFunc, middlewares ...Middleware) DispatchFunc {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](api)(wrapped)
	}
	return wrapped
}

// Logger logs every dispatch with the state before and after it.
// It never alters the action or the result.
func Logger(logger *slog.Logger) Middleware {
	return func(api API) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(act Action) (Action, error) {
				prev := api.GetState()
				start := time.Now()

				res, err := next(act)
				if err != nil {
					logger.Warn("dispatch failed",
						"action", act.Type(),
						"error", err,
					)
					return res, err
				}

				after := api.GetState()
				logger.Debug("action dispatched",
					"action", act.Type(),
					"prev_state", prev,
					"next_state", after,
					"changed", prev != after,
					"duration", time.Since(start),
				)
				return res, err
			}
		}
	}
}

// When applies mw only to actions accepted by match; other actions skip it.
func When(match func(Action) bool, mw Middleware) Middleware {
	return func(api API) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			wrapped := mw(api)(next)
			return func(act Action) (Action, error) {
				if match(act) {
					return wrapped(act)
				}
				return next(act)
			}
		}
	}
}

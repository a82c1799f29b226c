// Package store implements the flowstate state container.
//
// The container holds one immutable State tree, replaced only by dispatching
// actions through a middleware chain into a composed reducer. Subscribers are
// notified synchronously after every committed dispatch.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Dispatch and RunEffect are synchronous and run on the goroutine that owns
// the store (the loop owner). Reducers and subscriber notification run to
// completion before the next dispatch starts, so no two dispatches interleave.
//
// Effects:
// An Effect is the explicit replacement for dispatching a function. It runs
// with an EffectAPI that can dispatch plain actions and start Tasks. A Task
// runs on its own goroutine (the only suspension point, e.g. a network call)
// and returns an Action that is queued back onto the loop. Run, Next and
// Settle drain that queue on the owner goroutine.
//
// Event Processing Flow:
//  1. Dispatch(action) enters the middleware chain (first listed = outermost)
//  2. the raw dispatch runs the reducer under the re-entrancy guard
//  3. the new State is committed and stamped with the logical Clock
//  4. commit hooks observe (action, State) in commit order
//  5. a snapshot of the subscriber list is notified in registration order
//
// Thread-safety model:
//   - GetState, Subscribe, Enqueue, EnqueueEffect: safe from any goroutine
//   - Dispatch, RunEffect, ReplaceReducer, Run, Next, Settle: loop owner only
package store

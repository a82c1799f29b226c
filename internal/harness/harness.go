package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/flowstate/internal/app"
	"github.com/roach88/flowstate/internal/config"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/testutil"
)

// StepTimeout bounds every wait on a fetch call or a queued result.
var StepTimeout = 5 * time.Second

// Harness runs one scenario against a fresh App.
//
// The fetcher is gated, so fetch results only arrive when a resolve or
// reject step releases them. Timestamps come from a step clock starting at
// testutil.Epoch, one second apart.
type Harness struct {
	app     *app.App
	fetcher *testutil.GatedFetcher
	clock   *testutil.StepClock
	logger  *slog.Logger
	result  *Result
	calls   int // fetch calls started so far
}

// Run executes a scenario and returns its result.
//
// Failed expectations and assertions are reported in the Result. The error
// is non-nil only when the scenario could not be executed at all.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	// Cancelling releases fetch calls the scenario never resolved.
	defer cancel()

	h := &Harness{
		fetcher: testutil.NewGatedFetcher(),
		clock:   testutil.NewStepClock(time.Time{}, 0),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:  NewResult(),
	}

	a, err := app.New(ctx, scenarioConfig(scenario.Config), app.Deps{
		Fetcher:    h.fetcher,
		Now:        h.clock.Now,
		Logger:     h.logger,
		Middleware: []store.Middleware{h.traceMiddleware()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build app: %w", err)
	}
	h.app = a
	defer a.Close(context.Background())

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	state, err := stateMap(a.Store.GetState())
	if err != nil {
		return nil, err
	}
	h.result.State = state

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func scenarioConfig(o ConfigOverrides) config.Config {
	cfg := config.Default()
	if o.Zip != nil {
		cfg.Weather.Zip = *o.Zip
	}
	if o.DiscardStale != nil {
		cfg.Weather.DiscardStale = *o.DiscardStale
	}
	if o.Devtools != nil {
		cfg.Devtools.Enabled = *o.Devtools
	}
	if o.MaxAge != nil {
		cfg.Devtools.MaxAge = *o.MaxAge
	}
	return cfg
}

// executeStep performs one step. Behavioural failures are recorded in the
// result; the returned error aborts the scenario.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	s := h.app.Store

	switch {
	case step.Dispatch != nil:
		act, err := h.parseAction(step.Dispatch)
		if err != nil {
			return err
		}
		if _, err := s.Dispatch(act); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: dispatch %s: %v", index, act.Type(), err))
		}

	case step.Fetch != nil:
		if err := h.runFetch(ctx, index, h.app.Weather.Fetch(*step.Fetch)); err != nil {
			return err
		}

	case step.Refresh:
		if err := h.runFetch(ctx, index, h.app.Weather.Refresh()); err != nil {
			return err
		}

	case step.Resolve != nil:
		waitCtx, cancel := context.WithTimeout(ctx, StepTimeout)
		defer cancel()
		if err := h.fetcher.Resolve(waitCtx, step.Resolve.Call, step.Resolve.Temperature); err != nil {
			return err
		}
		if err := s.Next(waitCtx); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: resolve: %v", index, err))
		}

	case step.Reject != nil:
		waitCtx, cancel := context.WithTimeout(ctx, StepTimeout)
		defer cancel()
		if err := h.fetcher.Reject(waitCtx, step.Reject.Call, errors.New(step.Reject.Error)); err != nil {
			return err
		}
		if err := s.Next(waitCtx); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: reject: %v", index, err))
		}

	case step.Settle:
		waitCtx, cancel := context.WithTimeout(ctx, StepTimeout)
		defer cancel()
		if err := s.Settle(waitCtx); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: settle: %v", index, err))
		}
	}

	if len(step.Expect) == 0 {
		return nil
	}
	state, err := stateMap(s.GetState())
	if err != nil {
		return err
	}
	if err := matchState(state, step.Expect); err != nil {
		h.result.AddError(fmt.Sprintf("steps[%d]: %v", index, err))
	}
	return nil
}

// runFetch runs a fetch effect and waits for its call to reach the fetcher,
// so call indexes follow step order.
func (h *Harness) runFetch(ctx context.Context, index int, eff store.Effect) error {
	if err := h.app.Store.RunEffect(ctx, eff); err != nil {
		h.result.AddError(fmt.Sprintf("steps[%d]: fetch: %v", index, err))
		return nil
	}
	h.calls++

	waitCtx, cancel := context.WithTimeout(ctx, StepTimeout)
	defer cancel()
	return h.fetcher.WaitForCalls(waitCtx, h.calls)
}

func (h *Harness) parseAction(step *ActionStep) (store.Action, error) {
	env := map[string]any{"type": step.Type}
	if len(step.Payload) > 0 {
		env["payload"] = step.Payload
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode action %s: %w", step.Type, err)
	}
	return h.app.Registry.Parse(data)
}

// traceMiddleware appends every committed action to the result trace,
// stamped with the store's seq for that commit.
func (h *Harness) traceMiddleware() store.Middleware {
	return func(api store.API) func(next store.DispatchFunc) store.DispatchFunc {
		return func(next store.DispatchFunc) store.DispatchFunc {
			return func(act store.Action) (store.Action, error) {
				res, err := next(act)
				if err != nil {
					return res, err
				}

				env, encErr := h.app.Registry.Encode(act)
				if encErr != nil {
					h.result.AddError(fmt.Sprintf("trace: %v", encErr))
				}
				h.result.AddTrace(act.Type(), env.Payload, h.app.Store.Seq())
				return res, nil
			}
		}
	}
}

// stateMap decodes the JSON form of st.
func stateMap(st *store.State) (map[string]any, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return m, nil
}

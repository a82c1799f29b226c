// Package harness runs scripted scenarios against a flowstate store.
//
// A scenario builds a fresh App with a gated weather fetcher and a step
// clock, runs its steps, and checks the committed trace and final state.
// Runs are deterministic: fetch results arrive only when a step releases
// them, and timestamps advance one second per use.
//
// # Scenario Format
//
//	name: weather_last_write_wins
//	description: "Slow response overwrites the newer one"
//	config:
//	  discard_stale: false
//	steps:
//	  - fetch: "19446"
//	  - fetch: "10001"
//	    expect: { weather: { zip: "10001", isFetching: true } }
//	  - resolve: { call: 1, temperature: 60 }
//	  - resolve: { call: 0, temperature: 50 }
//	  - dispatch: { type: increase }
//	assertions:
//	  - type: trace_count
//	    action: RECEIVE_WEATHER
//	    count: 2
//	  - type: final_state
//	    slice: weather
//	    expect: { temperature: 50 }
//
// Step operations are dispatch, fetch, refresh, resolve, reject and settle.
// Fetch calls are numbered from 0 in step order. Resolve and reject commit
// the released result before the next step runs. Every step may carry an
// expect clause matched against the state JSON.
//
// # Assertion Types
//
//   - trace_contains: an action appears with a matching payload
//   - trace_order: actions first appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: a slice of the final state matches expected values
//
// Expect clauses and payload matches use subset semantics.
package harness

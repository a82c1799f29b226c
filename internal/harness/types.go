package harness

import "encoding/json"

// TraceEvent is one action committed by the store during a scenario.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every committed action in commit order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// State is the final state tree decoded from its JSON form.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a committed action to the trace.
func (r *Result) AddTrace(typ string, payload json.RawMessage, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Type:    typ,
		Payload: payload,
	})
}

// Types returns the action type of every trace event, in order.
func (r *Result) Types() []string {
	types := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		types[i] = ev.Type
	}
	return types
}

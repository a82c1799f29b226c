package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of the store: a list of steps driven against a
// fresh App with a gated weather fetcher, followed by assertions on the
// resulting trace and state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the default configuration.
	Config ConfigOverrides `yaml:"config,omitempty"`

	// Steps run in order. Each step performs at most one operation and may
	// check the state afterwards.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ConfigOverrides are the configuration knobs a scenario may change.
// Nil fields keep the default.
type ConfigOverrides struct {
	Zip          *string `yaml:"zip,omitempty"`
	DiscardStale *bool   `yaml:"discard_stale,omitempty"`
	Devtools     *bool   `yaml:"devtools,omitempty"`
	MaxAge       *int    `yaml:"max_age,omitempty"`
}

// Step is one scenario step.
type Step struct {
	// Dispatch sends a plain action through the middleware chain.
	Dispatch *ActionStep `yaml:"dispatch,omitempty"`

	// Fetch runs the weather fetch effect for a zip code.
	Fetch *string `yaml:"fetch,omitempty"`

	// Refresh runs the fetch effect for the zip code in the state.
	Refresh bool `yaml:"refresh,omitempty"`

	// Resolve completes a pending fetch call and commits its result.
	Resolve *ResolveStep `yaml:"resolve,omitempty"`

	// Reject fails a pending fetch call and commits its result.
	Reject *RejectStep `yaml:"reject,omitempty"`

	// Settle processes queued results until no fetch is in flight.
	Settle bool `yaml:"settle,omitempty"`

	// Expect is matched against the state JSON after the step.
	// Subset match: only the listed fields are checked.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// ActionStep is a serialized action.
type ActionStep struct {
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload,omitempty"`
}

// ResolveStep completes fetch call Call (0-based, in start order).
type ResolveStep struct {
	Call        int     `yaml:"call"`
	Temperature float64 `yaml:"temperature"`
}

// RejectStep fails fetch call Call with Error.
type RejectStep struct {
	Call  int    `yaml:"call"`
	Error string `yaml:"error"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an action appears with a matching payload
	// - "trace_order": actions appear in order
	// - "trace_count": an action appears exactly N times
	// - "final_state": a state slice matches expected values
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Payload is matched against the action payload (trace_contains).
	// Subset match.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Slice names the state slice (final_state).
	Slice string `yaml:"slice,omitempty"`

	// Expect holds expected slice fields (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	ops := 0
	if s.Dispatch != nil {
		ops++
		if s.Dispatch.Type == "" {
			return fmt.Errorf("steps[%d]: dispatch type is required", index)
		}
	}
	if s.Fetch != nil {
		ops++
	}
	if s.Refresh {
		ops++
	}
	if s.Resolve != nil {
		ops++
		if s.Resolve.Call < 0 {
			return fmt.Errorf("steps[%d]: resolve call must be non-negative", index)
		}
	}
	if s.Reject != nil {
		ops++
		if s.Reject.Call < 0 {
			return fmt.Errorf("steps[%d]: reject call must be non-negative", index)
		}
		if s.Reject.Error == "" {
			return fmt.Errorf("steps[%d]: reject error is required", index)
		}
	}
	if s.Settle {
		ops++
	}

	if ops > 1 {
		return fmt.Errorf("steps[%d]: a step performs at most one operation, found %d", index, ops)
	}
	if ops == 0 && len(s.Expect) == 0 {
		return fmt.Errorf("steps[%d]: step has no operation and no expect", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Slice == "" {
			return fmt.Errorf("assertions[%d]: slice is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

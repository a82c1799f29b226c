package store

// Action is an intent record. Type is the discriminant used for logging,
// serialization and replay; reducers match on the concrete Go type.
//
// Action families (counter, weather, ...) declare a sealed sub-interface with
// an unexported marker method so the set of variants is closed.
type Action interface {
	Type() string
}

// Init is dispatched once by New so every slice reducer initializes itself.
type Init struct{}

// Type implements Action.
func (Init) Type() string { return "@@flowstate/INIT" }

// Replace is dispatched by ReplaceReducer after the reducer swap.
type Replace struct{}

// Type implements Action.
func (Replace) Type() string { return "@@flowstate/REPLACE" }

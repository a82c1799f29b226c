// Package weather is the weather slice and its asynchronous fetch.
//
// A fetch is three actions: RequestWeather when it starts, then either
// ReceiveWeather or WeatherFailed when the Fetcher returns. Each fetch carries
// a request number; under LatestOnly a response for anything but the newest
// request is ignored.
package weather

import "github.com/roach88/flowstate/internal/store"

// SliceName is the key of the weather slice in the state tree.
const SliceName = "weather"

// DefaultZip is the zip code shown before any fetch.
const DefaultZip = "19446"

// State is the weather slice.
type State struct {
	Zip         string  `json:"zip"`
	Temperature float64 `json:"temperature"`
	IsFetching  bool    `json:"isFetching"`
	Error       string  `json:"error,omitempty"`
	ReceivedAt  int64   `json:"receivedAt,omitempty"`
	Pending     uint64  `json:"pending,omitempty"`
}

// Default returns the initial weather slice.
func Default() State {
	return State{Zip: DefaultZip}
}

// Action is the closed set of weather actions.
type Action interface {
	store.Action
	weatherAction()
}

// RequestWeather marks a fetch for Zip as started.
type RequestWeather struct {
	Zip     string `json:"zip"`
	Request uint64 `json:"request"`
}

// ReceiveWeather delivers the temperature for Zip.
type ReceiveWeather struct {
	Zip         string  `json:"zip"`
	Request     uint64  `json:"request"`
	Temperature float64 `json:"temperature"`
	ReceivedAt  int64   `json:"receivedAt"`
}

// WeatherFailed reports a fetch that produced no temperature.
type WeatherFailed struct {
	Zip      string `json:"zip"`
	Request  uint64 `json:"request"`
	Error    string `json:"error"`
	FailedAt int64  `json:"failedAt"`
}

func (RequestWeather) Type() string { return "REQUEST_WEATHER" }
func (ReceiveWeather) Type() string { return "RECEIVE_WEATHER" }
func (WeatherFailed) Type() string  { return "WEATHER_FAILED" }

func (RequestWeather) weatherAction() {}
func (ReceiveWeather) weatherAction() {}
func (WeatherFailed) weatherAction()  {}

// Policy decides what happens to a response that is not for the newest
// request.
type Policy int

const (
	// LastWriteWins applies every response in arrival order.
	LastWriteWins Policy = iota

	// LatestOnly drops responses for superseded requests.
	LatestOnly
)

func (p Policy) String() string {
	switch p {
	case LastWriteWins:
		return "last-write-wins"
	case LatestOnly:
		return "latest-only"
	default:
		return "unknown"
	}
}

// Reducer returns the weather reducer for policy p.
func Reducer(p Policy) func(State, store.Action) State {
	return func(s State, act store.Action) State {
		a, ok := act.(Action)
		if !ok {
			return s
		}

		switch a := a.(type) {
		case RequestWeather:
			s.Zip = a.Zip
			s.IsFetching = true
			s.Error = ""
			if a.Request > s.Pending {
				s.Pending = a.Request
			}
			return s

		case ReceiveWeather:
			if p == LatestOnly && a.Request != s.Pending {
				return s
			}
			s.Zip = a.Zip
			s.Temperature = a.Temperature
			s.ReceivedAt = a.ReceivedAt
			s.IsFetching = false
			s.Error = ""
			return s

		case WeatherFailed:
			if p == LatestOnly && a.Request != s.Pending {
				return s
			}
			s.Zip = a.Zip
			s.IsFetching = false
			s.Error = a.Error
			return s
		}
		return s
	}
}

// Slice declares the weather slice with default def.
func Slice(def State, p Policy) store.SliceReducer {
	return store.Slice(def, Reducer(p))
}

// Select reads the weather slice, falling back to Default.
func Select(st *store.State) State {
	s, ok := store.Select[State](st, SliceName)
	if !ok {
		return Default()
	}
	return s
}

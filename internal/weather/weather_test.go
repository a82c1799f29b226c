package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/flowstate/internal/store"
)

func TestReducer_Request(t *testing.T) {
	r := Reducer(LastWriteWins)

	s := r(State{Zip: "19446", Temperature: 40, Error: "old"}, RequestWeather{Zip: "10001", Request: 1})

	assert.Equal(t, State{Zip: "10001", Temperature: 40, IsFetching: true, Pending: 1}, s)
}

func TestReducer_Receive(t *testing.T) {
	r := Reducer(LastWriteWins)
	s := r(Default(), RequestWeather{Zip: "19446", Request: 1})

	s = r(s, ReceiveWeather{Zip: "19446", Request: 1, Temperature: 55, ReceivedAt: 1700000000000})

	assert.Equal(t, State{
		Zip:         "19446",
		Temperature: 55,
		ReceivedAt:  1700000000000,
		Pending:     1,
	}, s)
}

func TestReducer_FailedKeepsTemperature(t *testing.T) {
	r := Reducer(LastWriteWins)
	s := State{Zip: "19446", Temperature: 40, IsFetching: true, Pending: 2}

	s = r(s, WeatherFailed{Zip: "19446", Request: 2, Error: "weather 19446: unexpected status 500"})

	assert.False(t, s.IsFetching)
	assert.Equal(t, 40.0, s.Temperature)
	assert.Equal(t, "weather 19446: unexpected status 500", s.Error)
}

func TestReducer_LastWriteWinsAppliesStale(t *testing.T) {
	r := Reducer(LastWriteWins)
	s := r(Default(), RequestWeather{Zip: "a", Request: 1})
	s = r(s, RequestWeather{Zip: "b", Request: 2})
	s = r(s, ReceiveWeather{Zip: "b", Request: 2, Temperature: 60})
	s = r(s, ReceiveWeather{Zip: "a", Request: 1, Temperature: 50})

	assert.Equal(t, "a", s.Zip)
	assert.Equal(t, 50.0, s.Temperature)
}

func TestReducer_LatestOnlyDropsStale(t *testing.T) {
	r := Reducer(LatestOnly)
	s := r(Default(), RequestWeather{Zip: "a", Request: 1})
	s = r(s, RequestWeather{Zip: "b", Request: 2})
	s = r(s, ReceiveWeather{Zip: "b", Request: 2, Temperature: 60})

	stale := r(s, ReceiveWeather{Zip: "a", Request: 1, Temperature: 50})
	assert.Equal(t, s, stale)

	failed := r(s, WeatherFailed{Zip: "a", Request: 1, Error: "late"})
	assert.Equal(t, s, failed)

	assert.Equal(t, "b", s.Zip)
	assert.Equal(t, 60.0, s.Temperature)
}

func TestReducer_LatestOnlyStaysFetchingUntilNewest(t *testing.T) {
	r := Reducer(LatestOnly)
	s := r(Default(), RequestWeather{Zip: "a", Request: 1})
	s = r(s, RequestWeather{Zip: "b", Request: 2})
	s = r(s, ReceiveWeather{Zip: "a", Request: 1, Temperature: 50})

	assert.True(t, s.IsFetching)
}

func TestReducer_UnknownActionUnchanged(t *testing.T) {
	s := Default()
	assert.Equal(t, s, Reducer(LatestOnly)(s, store.Init{}))
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "last-write-wins", LastWriteWins.String())
	assert.Equal(t, "latest-only", LatestOnly.String())
	assert.Equal(t, "unknown", Policy(9).String())
}

func TestSelect_Default(t *testing.T) {
	assert.Equal(t, Default(), Select(store.NewState(nil)))
}

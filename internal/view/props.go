package view

import (
	"context"
	"strconv"

	"github.com/roach88/flowstate/internal/counter"
	"github.com/roach88/flowstate/internal/routing"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/weather"
)

// Searching is shown in place of a temperature that has never arrived.
const Searching = "searching ..."

// HeaderProps drives the navigation header.
type HeaderProps struct {
	Path string
}

// CounterProps drives the counter view.
type CounterProps struct {
	Count int
}

// WeatherProps drives the weather view.
type WeatherProps struct {
	Zip         string
	Temperature string
	IsFetching  bool
	Error       string
}

// AppProps drives the whole page.
type AppProps struct {
	Header  HeaderProps
	Counter CounterProps
	Weather WeatherProps
}

// Actions are the callbacks views may invoke.
type Actions struct {
	Increase func() error
	Fetch    func(zip string) error
	Navigate func(path string) error
}

// SelectHeader maps the routing slice to header props.
func SelectHeader(st *store.State) HeaderProps {
	return HeaderProps{Path: routing.Select(st).Path}
}

// SelectCounter maps the counter slice to counter props.
func SelectCounter(st *store.State) CounterProps {
	return CounterProps{Count: counter.Select(st).Count}
}

// WeatherSelector maps the weather slice to props, formatting temperatures
// in units ("imperial", "metric" or "standard").
func WeatherSelector(units string) func(*store.State) WeatherProps {
	symbol := unitSymbol(units)
	return func(st *store.State) WeatherProps {
		w := weather.Select(st)
		p := WeatherProps{
			Zip:        w.Zip,
			IsFetching: w.IsFetching,
			Error:      w.Error,
		}
		if w.IsFetching || w.ReceivedAt == 0 {
			p.Temperature = Searching
		} else {
			p.Temperature = strconv.FormatFloat(w.Temperature, 'f', -1, 64) + symbol
		}
		return p
	}
}

// AppSelector combines every slice selector.
func AppSelector(units string) func(*store.State) AppProps {
	selectWeather := WeatherSelector(units)
	return func(st *store.State) AppProps {
		return AppProps{
			Header:  SelectHeader(st),
			Counter: SelectCounter(st),
			Weather: selectWeather(st),
		}
	}
}

// ActionsFor builds the view callbacks. fetch turns a zip code into the
// fetch effect; ctx bounds effects started from the view.
func ActionsFor(ctx context.Context, fetch func(zip string) store.Effect) func(Dispatcher) Actions {
	return func(d Dispatcher) Actions {
		return Actions{
			Increase: func() error {
				_, err := d.Dispatch(counter.Increase{})
				return err
			},
			Fetch: func(zip string) error {
				return d.RunEffect(ctx, fetch(zip))
			},
			Navigate: func(path string) error {
				_, err := d.Dispatch(routing.Navigate(path))
				return err
			},
		}
	}
}

func unitSymbol(units string) string {
	switch units {
	case "metric":
		return "°C"
	case "standard":
		return "K"
	default:
		return "°F"
	}
}

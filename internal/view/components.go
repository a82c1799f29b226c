package view

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

var navLinks = []struct {
	Path  string
	Label string
}{
	{"/", "Home"},
	{"/counter", "Counter"},
	{"/weather", "Weather"},
}

// Header renders the navigation bar with the current path marked active.
func Header(p HeaderProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<header><nav>`); err != nil {
			return err
		}
		for _, l := range navLinks {
			class := ""
			if l.Path == p.Path {
				class = ` class="active"`
			}
			if _, err := fmt.Fprintf(w, `<a href="%s"%s>%s</a>`,
				templ.EscapeString(l.Path), class, templ.EscapeString(l.Label)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</nav></header>`)
		return err
	})
}

// Counter renders the count and its increase button.
func Counter(p CounterProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<section id="counter"><h2>Counter</h2><p class="count">%d</p>`+
				`<button hx-post="/actions/increase" hx-target="#counter">+1</button></section>`,
			p.Count)
		return err
	})
}

// Weather renders the zip code, temperature and any fetch error.
func Weather(p WeatherProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "temperature"
		if p.IsFetching {
			class += " fetching"
		}
		if _, err := fmt.Fprintf(w,
			`<section id="weather"><h2>Weather</h2><p class="zip">%s</p><p class="%s">%s</p>`,
			templ.EscapeString(p.Zip), class, templ.EscapeString(p.Temperature)); err != nil {
			return err
		}
		if p.Error != "" {
			if _, err := fmt.Fprintf(w, `<p class="error">%s</p>`, templ.EscapeString(p.Error)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w,
			`<form hx-post="/actions/fetch" hx-target="#weather"><input name="zip" value="`+
				templ.EscapeString(p.Zip)+`"><button>Fetch</button></form></section>`)
		return err
	})
}

// App renders the page for the current path: both panels at "/", one panel
// on its own path, and a not-found notice elsewhere.
func App(p AppProps, _ Actions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<main>`); err != nil {
			return err
		}
		if err := Header(p.Header).Render(ctx, w); err != nil {
			return err
		}

		var err error
		switch p.Header.Path {
		case "/":
			if err = Counter(p.Counter).Render(ctx, w); err == nil {
				err = Weather(p.Weather).Render(ctx, w)
			}
		case "/counter":
			err = Counter(p.Counter).Render(ctx, w)
		case "/weather":
			err = Weather(p.Weather).Render(ctx, w)
		default:
			_, err = fmt.Fprintf(w, `<p class="not-found">No page at %s</p>`, templ.EscapeString(p.Header.Path))
		}
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, `</main>`)
		return err
	})
}

// Status renders a one-line plain text summary for terminals.
func Status(p AppProps, _ Actions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		line := fmt.Sprintf("[%s] count=%d zip=%s temp=%s", p.Header.Path, p.Counter.Count, p.Weather.Zip, p.Weather.Temperature)
		if p.Weather.Error != "" {
			line += " error=" + p.Weather.Error
		}
		_, err := io.WriteString(w, line+"\n")
		return err
	})
}

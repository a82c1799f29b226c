package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultURLTemplate is the OpenWeatherMap current-weather endpoint.
// {zip}, {units} and {key} are substituted, query-escaped.
const DefaultURLTemplate = "http://api.openweathermap.org/data/2.5/weather?zip={zip},us&units={units}&APPID={key}"

// Reading is one fetched observation.
type Reading struct {
	Temperature float64
}

// Fetcher retrieves the current reading for a zip code.
type Fetcher interface {
	Fetch(ctx context.Context, zip string) (Reading, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, zip string) (Reading, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, zip string) (Reading, error) {
	return f(ctx, zip)
}

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind string

const (
	ErrKindNetwork   FetchErrorKind = "network"
	ErrKindStatus    FetchErrorKind = "status"
	ErrKindMalformed FetchErrorKind = "malformed"
)

// FetchError is returned by HTTPFetcher.
type FetchError struct {
	Kind   FetchErrorKind
	Zip    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case ErrKindStatus:
		return fmt.Sprintf("weather %s: unexpected status %d", e.Zip, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("weather %s: %s: %v", e.Zip, e.Kind, e.Err)
		}
		return fmt.Sprintf("weather %s: %s", e.Zip, e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is a FetchError of the given kind.
func IsFetchError(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// HTTPFetcher fetches readings over HTTP.
type HTTPFetcher struct {
	Client      *http.Client
	URLTemplate string
	Units       string
	APIKey      string

	// Timeout bounds one request. Zero means no timeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewHTTPFetcher returns a fetcher for the default endpoint in imperial units.
func NewHTTPFetcher(apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:      http.DefaultClient,
		URLTemplate: DefaultURLTemplate,
		Units:       "imperial",
		APIKey:      apiKey,
	}
}

// URL returns the request URL for zip.
func (f *HTTPFetcher) URL(zip string) string {
	tmpl := f.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	r := strings.NewReplacer(
		"{zip}", url.QueryEscape(zip),
		"{units}", url.QueryEscape(f.Units),
		"{key}", url.QueryEscape(f.APIKey),
	)
	return r.Replace(tmpl)
}

type response struct {
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, zip string) (Reading, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(zip), nil)
	if err != nil {
		return Reading{}, &FetchError{Kind: ErrKindNetwork, Zip: zip, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	logger := f.logger().With("zip", zip, "request_id", reqID)
	logger.Debug("fetching weather")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("weather request failed", "error", err)
		return Reading{}, &FetchError{Kind: ErrKindNetwork, Zip: zip, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.Warn("weather request rejected", "status", resp.StatusCode)
		return Reading{}, &FetchError{Kind: ErrKindStatus, Zip: zip, Status: resp.StatusCode}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Reading{}, &FetchError{Kind: ErrKindMalformed, Zip: zip, Err: err}
	}
	if body.Main == nil || body.Main.Temp == nil {
		return Reading{}, &FetchError{Kind: ErrKindMalformed, Zip: zip, Err: errors.New("missing main.temp")}
	}

	logger.Debug("weather received", "temperature", *body.Main.Temp)
	return Reading{Temperature: *body.Main.Temp}, nil
}

func (f *HTTPFetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

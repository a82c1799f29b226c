package weather

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/flowstate/internal/store"
)

// ErrNoZip is returned by Fetch for an empty zip code.
var ErrNoZip = errors.New("weather: zip code is required")

// Service builds fetch effects.
type Service struct {
	Fetcher Fetcher

	// Now stamps received and failed actions. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger

	mu   sync.Mutex
	last uint64 // last request number issued
}

// NewService returns a Service using f.
func NewService(f Fetcher) *Service {
	return &Service{Fetcher: f, Now: time.Now}
}

// Fetch returns the effect that fetches the weather for zip.
//
// The effect dispatches RequestWeather before it returns. The Fetcher runs in
// a Task whose result (ReceiveWeather or WeatherFailed) is queued onto the
// store loop. Request numbers are strictly increasing per Service and stay
// above the state's Pending, so moving the state back in time never reissues
// the number of a request still in flight.
func (svc *Service) Fetch(zip string) store.Effect {
	return func(ctx context.Context, api store.EffectAPI) error {
		if zip == "" {
			return ErrNoZip
		}

		req := svc.nextRequest(Select(api.GetState()).Pending)
		if _, err := api.Dispatch(RequestWeather{Zip: zip, Request: req}); err != nil {
			return err
		}

		api.Go(func(ctx context.Context) store.Action {
			reading, err := svc.Fetcher.Fetch(ctx, zip)
			if err != nil {
				svc.logger().Warn("weather fetch failed", "zip", zip, "request", req, "error", err)
				return WeatherFailed{
					Zip:      zip,
					Request:  req,
					Error:    err.Error(),
					FailedAt: svc.now().UnixMilli(),
				}
			}
			return ReceiveWeather{
				Zip:         zip,
				Request:     req,
				Temperature: reading.Temperature,
				ReceivedAt:  svc.now().UnixMilli(),
			}
		})
		return nil
	}
}

// Refresh fetches the zip code currently in the state.
func (svc *Service) Refresh() store.Effect {
	return func(ctx context.Context, api store.EffectAPI) error {
		return svc.Fetch(Select(api.GetState()).Zip)(ctx, api)
	}
}

func (svc *Service) nextRequest(pending uint64) uint64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.last = max(svc.last, pending) + 1
	return svc.last
}

func (svc *Service) now() time.Time {
	if svc.Now != nil {
		return svc.Now()
	}
	return time.Now()
}

func (svc *Service) logger() *slog.Logger {
	if svc.Logger != nil {
		return svc.Logger
	}
	return slog.Default()
}

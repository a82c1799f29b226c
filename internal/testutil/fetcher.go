package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/flowstate/internal/weather"
)

// GatedFetcher is a weather.Fetcher whose calls block until the test
// resolves or rejects them by index. Calls are numbered from 0 in the order
// they reach Fetch.
type GatedFetcher struct {
	mu      sync.Mutex
	calls   []*gatedCall
	changed chan struct{}
}

type gatedCall struct {
	zip  string
	done chan gatedResult
	used bool
}

type gatedResult struct {
	reading weather.Reading
	err     error
}

// NewGatedFetcher creates a fetcher with no calls.
func NewGatedFetcher() *GatedFetcher {
	return &GatedFetcher{changed: make(chan struct{})}
}

// Fetch implements weather.Fetcher.
func (f *GatedFetcher) Fetch(ctx context.Context, zip string) (weather.Reading, error) {
	call := &gatedCall{zip: zip, done: make(chan gatedResult, 1)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()

	select {
	case r := <-call.done:
		return r.reading, r.err
	case <-ctx.Done():
		return weather.Reading{}, ctx.Err()
	}
}

// WaitForCalls blocks until at least n calls have started.
func (f *GatedFetcher) WaitForCalls(ctx context.Context, n int) error {
	for {
		f.mu.Lock()
		got, changed := len(f.calls), f.changed
		f.mu.Unlock()

		if got >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d fetch calls, have %d: %w", n, got, ctx.Err())
		case <-changed:
		}
	}
}

// Resolve completes call i with temp, waiting for the call to start first.
func (f *GatedFetcher) Resolve(ctx context.Context, i int, temp float64) error {
	return f.finish(ctx, i, gatedResult{reading: weather.Reading{Temperature: temp}})
}

// Reject fails call i with err, waiting for the call to start first.
func (f *GatedFetcher) Reject(ctx context.Context, i int, err error) error {
	if err == nil {
		err = fmt.Errorf("fetch %d rejected", i)
	}
	return f.finish(ctx, i, gatedResult{err: err})
}

// Zips returns the zip code of every call so far, in call order.
func (f *GatedFetcher) Zips() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	zips := make([]string, len(f.calls))
	for i, c := range f.calls {
		zips[i] = c.zip
	}
	return zips
}

func (f *GatedFetcher) finish(ctx context.Context, i int, r gatedResult) error {
	if i < 0 {
		return fmt.Errorf("invalid fetch call index %d", i)
	}
	if err := f.WaitForCalls(ctx, i+1); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls[i]
	if call.used {
		return fmt.Errorf("fetch call %d already finished", i)
	}
	call.used = true
	call.done <- r
	return nil
}

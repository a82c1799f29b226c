// Package app builds the one Store of a flowstate process from its
// configuration and hands it, with its collaborators, to the caller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/flowstate/internal/codec"
	"github.com/roach88/flowstate/internal/config"
	"github.com/roach88/flowstate/internal/counter"
	"github.com/roach88/flowstate/internal/devtools"
	"github.com/roach88/flowstate/internal/history"
	"github.com/roach88/flowstate/internal/routing"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/weather"
)

// Deps are the collaborators New does not build from config.
// Zero values select production defaults.
type Deps struct {
	Fetcher    weather.Fetcher
	Now        func() time.Time
	Logger     *slog.Logger
	SessionIDs history.SessionIDGenerator
	Middleware []store.Middleware
}

// App is a wired store with its collaborators.
type App struct {
	Config   config.Config
	Store    *store.Store
	Console  *devtools.Console // nil when devtools are disabled
	Weather  *weather.Service
	Registry *codec.Registry
	History  *history.Log      // nil when history is disabled
	Recorder *history.Recorder // nil when history is disabled
	Session  string
	Logger   *slog.Logger
}

// Slices declares every slice of the state tree.
func Slices(cfg config.Config) map[string]store.SliceReducer {
	def := weather.Default()
	def.Zip = cfg.Weather.Zip
	return map[string]store.SliceReducer{
		counter.SliceName: counter.Slice(),
		routing.SliceName: routing.Slice(),
		weather.SliceName: weather.Slice(def, cfg.Policy()),
	}
}

// NewRegistry registers every serializable action.
func NewRegistry() *codec.Registry {
	r := codec.NewRegistry()
	codec.MustRegister[counter.Increase](r)
	codec.MustRegister[routing.LocationChanged](r)
	codec.MustRegister[weather.RequestWeather](r)
	codec.MustRegister[weather.ReceiveWeather](r)
	codec.MustRegister[weather.WeatherFailed](r)
	codec.MustRegister[devtools.JumpToState](r)
	codec.MustRegister[devtools.Reset](r)
	codec.MustRegister[devtools.Commit](r)
	codec.MustRegister[devtools.Rollback](r)
	return r
}

// RootReducer combines the slices, wrapped by console when it is non-nil.
// The store must also run console.Committed as a commit hook.
func RootReducer(cfg config.Config, console *devtools.Console) store.Reducer {
	root := store.Combine(Slices(cfg))
	if console != nil {
		return console.Enhance(root)
	}
	return root
}

// commitHooks returns the hooks console needs, if any.
func commitHooks(console *devtools.Console) []store.CommitHook {
	if console == nil {
		return nil
	}
	return []store.CommitHook{console.Committed}
}

// New builds the App. When history is configured the log is opened and a
// session started; the caller must Close the App.
func New(ctx context.Context, cfg config.Config, deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		Config:   cfg,
		Registry: NewRegistry(),
		Logger:   logger,
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = &weather.HTTPFetcher{
			Client:      http.DefaultClient,
			URLTemplate: cfg.Weather.URLTemplate,
			Units:       cfg.Weather.Units,
			APIKey:      cfg.Weather.APIKey,
			Timeout:     cfg.Weather.Timeout,
			Logger:      logger,
		}
	}
	a.Weather = &weather.Service{Fetcher: fetcher, Now: now, Logger: logger}

	if cfg.Devtools.Enabled {
		a.Console = devtools.NewConsole(cfg.Devtools.MaxAge)
	}

	middleware := []store.Middleware{store.Logger(logger)}
	if cfg.History.Path != "" {
		log, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.History = log

		opts := []history.RecorderOption{
			history.WithNow(now),
			history.WithSnapshotEvery(cfg.History.SnapshotEvery),
			history.WithRecorderLogger(logger),
			history.WithContext(ctx),
		}
		if deps.SessionIDs != nil {
			opts = append(opts, history.WithSessionGenerator(deps.SessionIDs))
		}
		a.Recorder = history.NewRecorder(log, a.Registry, opts...)
	}
	middleware = append(middleware, deps.Middleware...)

	hooks := commitHooks(a.Console)
	if a.Recorder != nil {
		hooks = append(hooks, a.Recorder.Committed)
	}

	s, err := store.New(RootReducer(cfg, a.Console), nil,
		store.WithMiddleware(middleware...),
		store.WithCommitHook(hooks...),
		store.WithLogger(logger),
	)
	if err != nil {
		a.closeHistory()
		return nil, err
	}
	a.Store = s

	if a.Recorder != nil {
		session, err := a.Recorder.Start(ctx, "run", s.GetState())
		if err != nil {
			a.closeHistory()
			return nil, fmt.Errorf("start history session: %w", err)
		}
		a.Session = session
	}

	logger.Info("store ready",
		"slices", s.GetState().Keys(),
		"policy", cfg.Policy().String(),
		"devtools", a.Console != nil,
		"history", cfg.History.Path,
	)
	return a, nil
}

// Replayer returns a replayer for sessions recorded with this App's
// configuration.
func (a *App) Replayer() *history.Replayer {
	return NewReplayer(a.Config, a.History, a.Logger)
}

// NewReplayer returns a replayer for sessions in log recorded under cfg.
// The devtools console, when enabled, is rebuilt fresh for every replay.
func NewReplayer(cfg config.Config, log *history.Log, logger *slog.Logger) *history.Replayer {
	return &history.Replayer{
		Log:      log,
		Registry: NewRegistry(),
		Slices:   Slices(cfg),
		Reducer: func() (store.Reducer, []store.CommitHook) {
			var console *devtools.Console
			if cfg.Devtools.Enabled {
				console = devtools.NewConsole(cfg.Devtools.MaxAge)
			}
			return RootReducer(cfg, console), commitHooks(console)
		},
		Logger: logger,
	}
}

// Close flushes the history session, closes the log and stops the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Recorder != nil && a.Store != nil {
		if err := a.Recorder.Flush(ctx, a.Store.GetState()); err != nil {
			errs = append(errs, fmt.Errorf("flush history: %w", err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if err := a.closeHistory(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeHistory() error {
	if a.History == nil {
		return nil
	}
	err := a.History.Close()
	a.History = nil
	return err
}

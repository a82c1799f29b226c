package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/spf13/cobra"

	"github.com/roach88/flowstate/internal/app"
	"github.com/roach88/flowstate/internal/devtools"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/view"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database     string
	Zip          string
	DiscardStale bool

	// Deps overrides the App collaborators (for testing).
	// Zero fields select production defaults.
	Deps app.Deps
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session",
		Long: `Start the store and read commands from standard input.

Every change to the rendered status is printed as one line. Weather
fetches run in the background; "wait" blocks until they have landed.

Commands:
  increase            add one to the counter
  fetch [zip]         fetch the weather (current zip if omitted)
  go <path>           navigate to / /counter or /weather
  jump <n>            show devtools entry n
  reset | commit | rollback
  log                 print the devtools timeline
  state               print the state tree as JSON
  render              print the page as HTML
  wait                wait for in-flight fetches
  quit

Example:
  flowstate run --db ./flowstate.db
  echo "fetch 10001\nwait" | flowstate run --zip 19446`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session to this SQLite history")
	cmd.Flags().StringVar(&opts.Zip, "zip", "", "initial zip code")
	cmd.Flags().BoolVar(&opts.DiscardStale, "discard-stale", false, "drop responses to superseded fetches")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.History.Path = opts.Database
	}
	if opts.Zip != "" {
		cfg.Weather.Zip = opts.Zip
	}
	if cmd.Flags().Changed("discard-stale") {
		cfg.Weather.DiscardStale = opts.DiscardStale
	}

	logger := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())
	deps := opts.Deps
	if deps.Logger == nil {
		deps.Logger = logger
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := app.New(ctx, cfg, deps)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start store", err)
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			logger.Error("error closing session", "error", closeErr)
		}
	}()

	out := &syncWriter{w: cmd.OutOrStdout()}
	binding := view.Connect(a.Store,
		view.AppSelector(cfg.Weather.Units),
		view.ActionsFor(ctx, a.Weather.Fetch),
		view.Status,
		func(c templ.Component) {
			if err := c.Render(ctx, out); err != nil {
				logger.Warn("render failed", "error", err)
			}
		},
	)
	defer binding.Close()

	r := &repl{app: a, view: binding, out: out}
	go r.read(ctx, cmd.InOrStdin())

	if err := a.Store.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "store loop failed", err)
	}
	if a.Session != "" {
		logger.Info("session recorded", "session", a.Session, "db", cfg.History.Path)
	}
	return nil
}

// repl turns input lines into effects run by the store loop.
type repl struct {
	app  *app.App
	view *view.Binding[view.AppProps, view.Actions]
	out  io.Writer
}

// read runs on its own goroutine. It enqueues one effect per line and
// closes the store at end of input, which ends the loop once drained.
func (r *repl) read(ctx context.Context, in io.Reader) {
	defer r.app.Store.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "wait":
			if err := waitIdle(ctx, r.app.Store); err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				return
			}
			continue
		}

		eff, err := r.parse(fields)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			continue
		}
		if !r.app.Store.EnqueueEffect(r.report(eff)) {
			return
		}
	}
}

// report prints an effect's error instead of failing the loop.
func (r *repl) report(eff store.Effect) store.Effect {
	return func(ctx context.Context, api store.EffectAPI) error {
		if err := eff(ctx, api); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		return nil
	}
}

func (r *repl) parse(fields []string) (store.Effect, error) {
	name, args := fields[0], fields[1:]
	actions := r.view.Dispatch()

	switch name {
	case "increase", "inc":
		return func(context.Context, store.EffectAPI) error {
			return actions.Increase()
		}, nil

	case "fetch":
		if len(args) == 0 {
			return r.app.Weather.Refresh(), nil
		}
		zip := args[0]
		return func(context.Context, store.EffectAPI) error {
			return actions.Fetch(zip)
		}, nil

	case "go":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: go <path>")
		}
		path := args[0]
		return func(context.Context, store.EffectAPI) error {
			return actions.Navigate(path)
		}, nil

	case "jump":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: jump <index>")
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("jump: invalid index %q", args[0])
		}
		return r.devtools(devtools.JumpToState{Index: index})

	case "reset":
		return r.devtools(devtools.Reset{})
	case "commit":
		return r.devtools(devtools.Commit{})
	case "rollback":
		return r.devtools(devtools.Rollback{})

	case "log":
		if r.app.Console == nil {
			return nil, errDevtoolsDisabled
		}
		return func(context.Context, store.EffectAPI) error {
			return r.app.Console.WriteLog(r.out)
		}, nil

	case "state":
		return func(_ context.Context, api store.EffectAPI) error {
			data, err := json.Marshal(api.GetState())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(r.out, "%s\n", data)
			return err
		}, nil

	case "render":
		return func(ctx context.Context, _ store.EffectAPI) error {
			if err := view.App(r.view.Props(), actions).Render(ctx, r.out); err != nil {
				return err
			}
			_, err := io.WriteString(r.out, "\n")
			return err
		}, nil

	case "help":
		return func(context.Context, store.EffectAPI) error {
			_, err := io.WriteString(r.out, "commands: increase fetch go jump reset commit rollback log state render wait quit\n")
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown command %q (try help)", name)
}

var errDevtoolsDisabled = errors.New("devtools are disabled")

func (r *repl) devtools(act devtools.Action) (store.Effect, error) {
	if r.app.Console == nil {
		return nil, errDevtoolsDisabled
	}
	return store.Just(act), nil
}

// waitIdle blocks until every effect queued so far has run and every Task
// they started has reported back and been committed.
func waitIdle(ctx context.Context, s *store.Store) error {
	if err := barrier(ctx, s); err != nil {
		return err
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for s.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	// Results are queued before Pending drops, so a second barrier lands
	// behind them.
	return barrier(ctx, s)
}

// barrier returns once the loop has processed everything queued before it.
func barrier(ctx context.Context, s *store.Store) error {
	done := make(chan struct{})
	if !s.EnqueueEffect(func(context.Context, store.EffectAPI) error {
		close(done)
		return nil
	}) {
		return store.ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncWriter serializes writes from the loop and the input reader.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/spf13/cobra"

	"github.com/roach88/flowstate/internal/app"
	"github.com/roach88/flowstate/internal/store"
	"github.com/roach88/flowstate/internal/view"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Database string
	Session  string
	Path     string
	Status   bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the page for a state",
		Long: `Render the page as HTML for the initial state, or for the final state
of a recorded session when --db is given.

Examples:
  flowstate render
  flowstate render --path /weather
  flowstate render --db ./flowstate.db --session 0190... --status`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "render the final state of a recorded session")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to render (default latest)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "render this path instead of the recorded one")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "render the one-line status instead of HTML")

	return cmd
}

func runRender(opts *RenderOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())

	var st *store.State
	if opts.Database == "" {
		st = store.DefaultState(app.Slices(cfg))
	} else {
		log, err := openHistory(opts.Database)
		if err != nil {
			return err
		}
		defer log.Close()

		session := opts.Session
		if session == "" {
			latest, err := log.LatestSession(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return NewExitError(ExitCommandError, "no sessions recorded")
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to find latest session", err)
			}
			session = latest.ID
		}

		res, err := app.NewReplayer(cfg, log, logger).Replay(ctx, session)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to rebuild session %s", session), err)
		}
		st = res.Final
	}

	props := view.AppSelector(cfg.Weather.Units)(st)
	if opts.Path != "" {
		props.Header.Path = opts.Path
	}

	var page templ.Component
	if opts.Status {
		page = view.Status(props, view.Actions{})
	} else {
		page = view.App(props, view.Actions{})
	}

	w := cmd.OutOrStdout()
	if err := page.Render(ctx, w); err != nil {
		return WrapExitError(ExitFailure, "render failed", err)
	}
	if !opts.Status {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

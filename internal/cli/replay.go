package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowstate/internal/app"
	"github.com/roach88/flowstate/internal/history"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - defaults to the latest session
}

// ReplayReport is the outcome of a verified replay.
type ReplayReport struct {
	Session       string `json:"session"`
	Actions       int    `json:"actions"`
	Snapshots     int    `json:"snapshots"`
	FinalHash     string `json:"final_hash"`
	Deterministic bool   `json:"deterministic"`
	Mismatch      string `json:"mismatch,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded session and verify determinism",
		Long: `Rebuild a recorded session from its first snapshot by dispatching
every recorded action again, checking each state hash and every later
snapshot against the log.

Use the same config the session was recorded with.

Exit codes:
  0 - The replay reproduced the recorded states
  1 - The replay diverged from the log
  2 - Command error (database not found, unknown session, etc.)

Examples:
  flowstate replay --db ./flowstate.db
  flowstate replay --db ./flowstate.db --session 0190...
  flowstate replay --db ./flowstate.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to replay (default latest)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())

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
	} else if _, err := log.ReadSession(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", session))
		}
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	f.VerboseLog("Replaying session %s", session)

	report := ReplayReport{Session: session}
	res, err := app.NewReplayer(cfg, log, logger).Replay(ctx, session)
	var mismatch *history.ReplayMismatchError
	switch {
	case errors.As(err, &mismatch):
		report.Mismatch = mismatch.Error()
	case err != nil:
		return WrapExitError(ExitCommandError, "replay failed", err)
	default:
		report.Actions = res.Actions
		report.Snapshots = res.Snapshots
		report.FinalHash = res.FinalHash
		report.Deterministic = true
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report, Session: session}
		if !report.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_REPLAY_MISMATCH", Message: report.Mismatch}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if report.Deterministic {
			fmt.Fprintf(w, "✓ %s: %d actions, %d snapshots, final %s\n",
				session, report.Actions, report.Snapshots, report.FinalHash)
		} else {
			fmt.Fprintf(w, "✗ %s: %s\n", session, report.Mismatch)
		}
	}

	if !report.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from the recorded session")
	}
	return nil
}

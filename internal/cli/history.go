package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flowstate/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string // optional - break down one session by action type
}

// SessionSummary describes one recorded session.
type SessionSummary struct {
	ID        string         `json:"id"`
	Label     string         `json:"label,omitempty"`
	StartedAt string         `json:"started_at"`
	Actions   int            `json:"actions"`
	ByType    map[string]int `json:"by_type,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions",
		Long: `List the sessions recorded in a history database with their action
counts. With --session, break one session down by action type.

Examples:
  flowstate history --db ./flowstate.db
  flowstate history --db ./flowstate.db --session 0190...
  flowstate history --db ./flowstate.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "show one session by action type")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	log, err := openHistory(opts.Database)
	if err != nil {
		return err
	}
	defer log.Close()

	var sessions []history.Session
	if opts.Session != "" {
		s, err := log.ReadSession(ctx, opts.Session)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.Session))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		sessions = []history.Session{s}
	} else {
		sessions, err = log.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		counts, err := log.CountByType(ctx, s.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count actions", err)
		}
		summary := SessionSummary{
			ID:        s.ID,
			Label:     s.Label,
			StartedAt: time.UnixMilli(s.StartedAt).UTC().Format(time.RFC3339),
		}
		for _, n := range counts {
			summary.Actions += n
		}
		if opts.Session != "" {
			summary.ByType = counts
		}
		summaries = append(summaries, summary)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: summaries, Session: opts.Session})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %s  %-6s %d actions\n", s.ID, s.StartedAt, s.Label, s.Actions)
		types := make([]string, 0, len(s.ByType))
		for t := range s.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "    %-28s %d\n", t, s.ByType[t])
		}
	}
	return nil
}

// openHistory opens an existing history database. history.Open creates
// missing files, which read-only commands must not do.
func openHistory(path string) (*history.Log, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "history database not found", err)
	}
	log, err := history.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open history", err)
	}
	return log, nil
}

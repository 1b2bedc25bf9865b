package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haldane/snapvet/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// historyEntry is the JSON shape of one listed run.
type historyEntry struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	StartedAt string `json:"started_at"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded harness runs",
		Long: `List runs recorded in a history database, newest first.

Runs are recorded when a replay command is given --history (or a history
path in ` + ConfigFileName + `).

Example:
  snapvet history --db ./snapvet-history.db --limit 10`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to history SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(cmd, opts.Format, "E_COMMAND",
			WrapExitError(ExitCommandError, "failed to open history database", err))
	}
	defer st.Close()

	runs, err := st.RecentRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return commandError(cmd, opts.Format, "E_COMMAND",
			WrapExitError(ExitCommandError, "failed to list runs", err))
	}

	if opts.Format == "json" {
		entries := make([]historyEntry, 0, len(runs))
		for _, r := range runs {
			entries = append(entries, historyEntry{
				ID:        r.ID,
				Mode:      r.Mode,
				StartedAt: r.StartedAt.Format(time.RFC3339),
				Passed:    r.Passed,
				Failed:    r.Failed,
			})
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: entries})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "✓"
		if r.Failed > 0 {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s  %-8s  %d passed, %d failed  (%s)\n",
			status, r.StartedAt.Format(time.RFC3339), r.Mode, r.Passed, r.Failed, r.ID)
	}
	return nil
}

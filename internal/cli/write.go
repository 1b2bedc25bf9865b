package cli

import (
	"github.com/haldane/snapvet/internal/replay"
	"github.com/spf13/cobra"
)

// NewWriteCommand creates the write command.
func NewWriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := newReplayCommand(opts, replay.ModeWrite,
		"Rewrite snapshot baselines, archiving the superseded ones",
		`Replay every test-case folder's operation log and persist the produced
snapshots as the new current_snapshots baseline.

Before the replay, the existing baseline is archived under
src_snapshots/<formatVersion>/ keyed by its version stamp; after a
successful replay the stamp is rewritten with this build's format version.
Both the existing baseline and its stamp are required - their absence
aborts the run.

Exit codes:
  0 - All baselines rewritten
  1 - At least one replay failed
  2 - Command error (missing baseline or stamp, invalid paths, etc.)

Examples:
  snapvet write ./corpus --engine ./bin/sync-replay
  snapvet write ./corpus --stamp-version 4.2.0`)

	cmd.Flags().StringVar(&opts.StampVersion, "stamp-version", "",
		"format version to stamp new baselines with (default: build version)")

	return cmd
}

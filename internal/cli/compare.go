package cli

import (
	"github.com/haldane/snapvet/internal/replay"
	"github.com/spf13/cobra"
)

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	return newReplayCommand(opts, replay.ModeCompare,
		"Replay and compare snapshots against baselines",
		`Replay every test-case folder's operation log and compare the produced
snapshots byte-for-byte against the stored current_snapshots baseline.

Exit codes:
  0 - All folders match their baselines
  1 - At least one folder diverged or crashed
  2 - Command error (invalid paths, missing engine, etc.)

Examples:
  snapvet compare ./corpus --engine ./bin/sync-replay
  snapvet compare ./corpus --jobs 8 --format json`)
}

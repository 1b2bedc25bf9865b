package cli

import (
	"github.com/haldane/snapvet/internal/replay"
	"github.com/spf13/cobra"
)

// NewStressCommand creates the stress command.
func NewStressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	return newReplayCommand(opts, replay.ModeStress,
		"Replay with dense snapshotting for consistency checking",
		`Replay every test-case folder's operation log, snapshotting every 50
operations instead of 1000. Nothing is persisted or compared against a
baseline; the dense cadence exercises many more state-transition points to
check the engine reaches the same state regardless of snapshot timing.

On failure the engine leaves divergent snapshots under
current_snapshots/FailedSnapshots for post-mortem inspection; the next run
cleans them up.

Exit codes:
  0 - All replays completed cleanly
  1 - At least one replay diverged or crashed
  2 - Command error

Example:
  snapvet stress ./corpus --engine ./bin/sync-replay --jobs 8`)
}

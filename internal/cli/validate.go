package cli

import (
	"github.com/haldane/snapvet/internal/replay"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	return newReplayCommand(opts, replay.ModeValidate,
		"Validate that archived snapshot formats still load",
		`For every test-case folder, replay the operation log once per archived
snapshot format version under src_snapshots/, initializing the engine's
starting state from that version's snapshots. This verifies the current
engine still loads every historical format, not just the most recent one.

Folders without a src_snapshots archive contribute no jobs and are skipped.

Exit codes:
  0 - Every archived version loaded and replayed cleanly
  1 - At least one version failed to load or diverged
  2 - Command error

Example:
  snapvet validate ./corpus --engine ./bin/sync-replay`)
}

// Package replay runs recorded-operation replay jobs against the external
// document-synchronization engine and reports structured results.
//
// The engine itself is opaque: this package only knows its invocation
// boundary (input/output directories, mode flags, snapshot cadence) and its
// outcome shape (a sequence of error strings, empty on success). Every job
// either completes with a Result or its failure is surfaced as one; a worker
// crash is never silently swallowed.
package replay

import (
	"context"
	"fmt"
)

// Mode selects how a replay job treats snapshots.
type Mode int

const (
	// ModeWrite replays and establishes a fresh baseline in
	// current_snapshots, then archives the superseded one.
	ModeWrite Mode = iota + 1
	// ModeCompare replays to a scratch directory and diffs the produced
	// snapshots byte-for-byte against the current baseline.
	ModeCompare
	// ModeStress replays with dense snapshotting and no persistence or
	// comparison, purely to exercise more state-transition points.
	ModeStress
	// ModeValidate replays with the engine's starting state loaded from an
	// archived historical snapshot, verifying the old format still loads.
	ModeValidate
)

// String returns the mode name used in logs, reports and the history store.
func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeCompare:
		return "compare"
	case ModeStress:
		return "stress"
	case ModeValidate:
		return "validate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Snapshot cadences, in replayed operations per snapshot. Stress runs
// snapshot far more often to find cadence-dependent divergence; the other
// modes keep snapshots sparse to bound baseline storage cost.
const (
	DefaultInterval = 1000
	StressInterval  = 50
)

// IntervalFor returns the snapshot cadence for a mode.
func IntervalFor(m Mode) int {
	if m == ModeStress {
		return StressInterval
	}
	return DefaultInterval
}

// Params identifies one replay job. Immutable once built.
type Params struct {
	// Folder is the test-case folder path holding the operation log.
	Folder string
	// Mode selects the snapshot workflow.
	Mode Mode
	// SnapshotInterval is the cadence in operations between snapshots.
	SnapshotInterval int
	// SourceSnapshotDir is set only in validate mode: the archived
	// historical snapshot directory the engine initializes from.
	SourceSnapshotDir string
}

// Result is the settled outcome of one replay job. It is never partially
// populated: Success is false iff Diagnostics explains why.
type Result struct {
	Folder            string
	Mode              Mode
	SourceSnapshotDir string
	Success           bool
	Diagnostics       []string
}

// Request is the engine invocation boundary.
type Request struct {
	// InputDir is the test-case folder; the engine reads the operation log
	// and, for compare runs, the current baseline from here.
	InputDir string
	// OutputDir is where the engine writes produced snapshots.
	OutputDir string
	// Write persists produced snapshots as the new baseline.
	Write bool
	// Compare diffs produced snapshots against the current baseline.
	Compare bool
	// ExpandDiagnostics asks the engine for verbose mismatch detail.
	ExpandDiagnostics bool
	// SnapshotInterval is the cadence in operations between snapshots.
	SnapshotInterval int
	// SourceSnapshotDir, when non-empty, is the archived snapshot set the
	// engine loads its starting state from instead of replaying from
	// scratch.
	SourceSnapshotDir string
}

// Outcome is the engine's structured result. A non-empty Errors sequence is
// a replay failure; each entry is raw engine diagnostic text.
type Outcome struct {
	Errors []string `json:"errors"`
}

// Engine replays one operation log. Implementations must return either a
// structured Outcome or an error describing why no outcome was produced
// (for example an abnormal process exit); they must not panic for replay
// failures.
type Engine interface {
	Replay(ctx context.Context, req Request) (Outcome, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req Request) (Outcome, error)

// Replay calls f.
func (f EngineFunc) Replay(ctx context.Context, req Request) (Outcome, error) {
	return f(ctx, req)
}

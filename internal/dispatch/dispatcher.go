// Package dispatch discovers test-case folders and drives the mode-specific
// replay workflows across a bounded pool of concurrent workers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/haldane/snapvet/internal/corpus"
	"github.com/haldane/snapvet/internal/gate"
	"github.com/haldane/snapvet/internal/replay"
	"github.com/haldane/snapvet/internal/report"
	"github.com/haldane/snapvet/internal/snapshot"
	"github.com/haldane/snapvet/internal/store"
)

// DefaultCapacity is the worker pool size when none is configured.
const DefaultCapacity = 4

// FailureError marks a job that settled with a failed result. It is how a
// replay failure surfaces through the gate; the full detail lives in the
// run report.
type FailureError struct {
	Result replay.Result
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("replay failed for %s (%s)", e.Result.Folder, e.Result.Mode)
}

// IsFailure reports whether err marks a failed replay result.
func IsFailure(err error) bool {
	var fe *FailureError
	return errors.As(err, &fe)
}

// Dispatcher fans replay jobs out across a bounded worker pool.
//
// Orchestration (folder enumeration, workflow preparation, migration side
// effects) runs on the calling goroutine; only the replay jobs themselves
// run concurrently. No two concurrent jobs ever write into the same
// directory: write mode targets its own folder's baseline, every other mode
// writes to a private scratch dir. No file locking is needed.
type Dispatcher struct {
	// Root is the corpus directory holding one subdirectory per test case.
	Root string

	// Engine is the replay engine boundary.
	Engine replay.Engine

	// Capacity bounds concurrent jobs; DefaultCapacity when zero.
	Capacity int

	// Serial disables the worker pool: every job runs inline on the
	// calling goroutine with identical semantics and no parallelism.
	Serial bool

	// BuildVersion stamps freshly written baselines in write mode.
	BuildVersion string

	// ExpandDiagnostics asks the engine for verbose mismatch detail.
	ExpandDiagnostics bool

	// History, when set, records the finished run for trend tracking.
	History *store.Store

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Run replays every eligible folder under the corpus root in the given mode
// and returns the aggregated run report.
//
// The returned error covers orchestration problems only (unreadable corpus,
// violated write-mode preconditions, cancelled admission). Replay failures
// do not abort other jobs and are reported through the run report; callers
// decide the process exit from Run.Failed. On every return path, success or
// abort, all admitted jobs have settled first.
func (d *Dispatcher) Run(ctx context.Context, mode replay.Mode) (*report.Run, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	folders, skipped, err := corpus.Discover(d.Root)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		logger.Info("skipping folder without operation log", "folder", name)
	}

	capacity := d.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	run := report.NewRun(mode.String())
	g := gate.New(capacity)
	worker := &replay.Worker{
		Engine:            d.Engine,
		ExpandDiagnostics: d.ExpandDiagnostics,
		Logger:            logger,
	}
	wf, err := d.workflow(mode)
	if err != nil {
		return nil, err
	}
	interval := replay.IntervalFor(mode)

	logger.Info("run starting",
		"mode", mode.String(),
		"folders", len(folders),
		"capacity", capacity,
		"serial", d.Serial)

	for _, folder := range folders {
		if err := snapshot.CleanFailed(folder); err != nil {
			return nil, drain(g, logger, err)
		}

		units, err := wf.prepare(folder, interval)
		if err != nil {
			return nil, drain(g, logger, err)
		}

		for _, u := range units {
			job := d.jobFor(worker, run, u)
			if d.Serial {
				// Inline fallback: identical semantics, no parallelism.
				// Failures are already recorded in the report.
				_ = job(ctx)
				continue
			}
			if err := g.Go(ctx, job); err != nil {
				return nil, drain(g, logger, err)
			}
		}
	}

	if !d.Serial {
		if err := g.Wait(); err != nil && !IsFailure(err) {
			// Replay failures are in the report; anything else is an
			// orchestration defect and aborts the run.
			return nil, err
		}
	}

	logger.Info("run finished",
		"mode", mode.String(),
		"passed", run.Passed(),
		"failed", run.Failed(),
		"total", run.Total())

	if d.History != nil {
		if err := d.History.RecordRun(ctx, run); err != nil {
			// History is advisory; a recording failure must not flip the
			// run outcome.
			logger.Warn("failed to record run history", "error", err)
		}
	}

	return run, nil
}

// drain awaits every already-admitted job before surfacing an abort error.
// Nothing may outlive Run: not an engine process, not a restamp hook. Jobs
// already admitted run to completion; their failures are in the report and
// are not the abort cause.
func drain(g *gate.Gate, logger *slog.Logger, err error) error {
	if waitErr := g.Wait(); waitErr != nil && !IsFailure(waitErr) {
		logger.Error("job error during aborted run", "error", waitErr)
	}
	return err
}

// jobFor wraps one unit into a gate job: run the replay, apply the
// post-step, record the outcome, and surface failure as a FailureError.
func (d *Dispatcher) jobFor(worker *replay.Worker, run *report.Run, u unit) gate.Job {
	return func(ctx context.Context) error {
		res := worker.Run(ctx, u.params)

		if res.Success && u.after != nil {
			if err := u.after(res); err != nil {
				res.Success = false
				res.Diagnostics = append(res.Diagnostics, err.Error())
			}
		}

		run.Add(outcomeOf(res))

		if !res.Success {
			return &FailureError{Result: res}
		}
		return nil
	}
}

func (d *Dispatcher) workflow(mode replay.Mode) (workflow, error) {
	switch mode {
	case replay.ModeCompare, replay.ModeStress:
		return standardWorkflow{mode: mode}, nil
	case replay.ModeWrite:
		if d.BuildVersion == "" {
			return nil, errors.New("write mode requires a build version for restamping")
		}
		return writeWorkflow{buildVersion: d.BuildVersion}, nil
	case replay.ModeValidate:
		return validateWorkflow{}, nil
	default:
		return nil, fmt.Errorf("unknown replay mode %d", int(mode))
	}
}

func outcomeOf(res replay.Result) report.Outcome {
	o := report.Outcome{
		// The full folder path, so failure diagnostics identify the test
		// case without knowledge of the corpus root.
		Folder:      res.Folder,
		Mode:        res.Mode.String(),
		Success:     res.Success,
		Diagnostics: res.Diagnostics,
	}
	if res.SourceSnapshotDir != "" {
		o.SourceVersion = filepath.Base(res.SourceSnapshotDir)
	}
	return o
}

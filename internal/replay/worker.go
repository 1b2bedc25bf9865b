package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/haldane/snapvet/internal/corpus"
)

// Worker translates job parameters into engine invocations and converts
// every outcome, including crashes, into a structured Result.
type Worker struct {
	Engine Engine

	// ExpandDiagnostics asks the engine for verbose mismatch detail.
	ExpandDiagnostics bool

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Run executes one replay job and always returns a settled Result.
//
// The whole body is a fault boundary: a panic anywhere below (including
// inside an in-process Engine implementation) is converted into a failure
// Result instead of escaping into the dispatcher. Process-backed engines
// additionally isolate engine crashes at the OS level.
func (w *Worker) Run(ctx context.Context, p Params) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Folder:            p.Folder,
				Mode:              p.Mode,
				SourceSnapshotDir: p.SourceSnapshotDir,
				Success:           false,
				Diagnostics: []string{
					fmt.Sprintf("replay worker panic: %v", r),
					string(debug.Stack()),
				},
			}
		}
	}()

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	req, cleanup, err := w.buildRequest(p)
	if err != nil {
		return Result{
			Folder:            p.Folder,
			Mode:              p.Mode,
			SourceSnapshotDir: p.SourceSnapshotDir,
			Success:           false,
			Diagnostics:       []string{fmt.Sprintf("prepare replay: %v", err)},
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	logger.Debug("replay starting",
		"folder", p.Folder,
		"mode", p.Mode.String(),
		"interval", req.SnapshotInterval,
		"source", p.SourceSnapshotDir)

	outcome, err := w.Engine.Replay(ctx, req)
	if err != nil {
		// The engine produced no structured outcome (abnormal process
		// exit, cancelled context). Surface the raw fault text rather
		// than dropping it.
		return Result{
			Folder:            p.Folder,
			Mode:              p.Mode,
			SourceSnapshotDir: p.SourceSnapshotDir,
			Success:           false,
			Diagnostics:       []string{err.Error()},
		}
	}

	return Result{
		Folder:            p.Folder,
		Mode:              p.Mode,
		SourceSnapshotDir: p.SourceSnapshotDir,
		Success:           len(outcome.Errors) == 0,
		Diagnostics:       outcome.Errors,
	}
}

// buildRequest maps mode-specific parameters onto the engine boundary.
// Compare, stress and validate runs write snapshots to a scratch directory
// that is removed when the job settles; write runs target the baseline
// directory itself.
func (w *Worker) buildRequest(p Params) (Request, func(), error) {
	req := Request{
		InputDir:          p.Folder,
		ExpandDiagnostics: w.ExpandDiagnostics,
		SnapshotInterval:  p.SnapshotInterval,
	}
	if req.SnapshotInterval <= 0 {
		req.SnapshotInterval = IntervalFor(p.Mode)
	}

	switch p.Mode {
	case ModeWrite:
		req.Write = true
		req.OutputDir = filepath.Join(p.Folder, corpus.CurrentSnapshots)
		return req, nil, nil

	case ModeCompare:
		req.Compare = true

	case ModeStress:
		// No write, no compare: determinism and crash checking only.

	case ModeValidate:
		if p.SourceSnapshotDir == "" {
			return Request{}, nil, fmt.Errorf("validate job for %s has no source snapshot dir", p.Folder)
		}
		req.Compare = true
		req.SourceSnapshotDir = p.SourceSnapshotDir

	default:
		return Request{}, nil, fmt.Errorf("unknown replay mode %d", int(p.Mode))
	}

	scratch, err := os.MkdirTemp("", "snapvet-replay-*")
	if err != nil {
		return Request{}, nil, fmt.Errorf("create scratch dir: %w", err)
	}
	req.OutputDir = scratch
	return req, func() { _ = os.RemoveAll(scratch) }, nil
}

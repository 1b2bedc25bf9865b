package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// WorkerFault reports an engine process that terminated abnormally without
// producing a structured outcome. It is treated like a replay failure but
// carries synthetic diagnostic text naming the fault code.
type WorkerFault struct {
	ExitCode int
	Detail   string
}

func (f *WorkerFault) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("replay engine exited abnormally (exit code %d)", f.ExitCode)
	}
	return fmt.Sprintf("replay engine exited abnormally (exit code %d): %s", f.ExitCode, f.Detail)
}

// ProcessEngine invokes the replay engine as a separate OS process, so an
// engine crash cannot corrupt the orchestrator or other in-flight jobs.
//
// The request is passed as command-line flags and the engine reports its
// outcome as JSON ({"errors": [...]}) on stdout. A nonzero exit is accepted
// as long as stdout carries a parseable outcome (the engine exits nonzero on
// replay failures); a nonzero exit without one becomes a WorkerFault.
type ProcessEngine struct {
	// Binary is the engine executable path.
	Binary string

	// Timeout bounds one invocation. Zero disables the bound; a hung
	// engine then occupies its gate slot indefinitely.
	Timeout time.Duration
}

// Replay runs one engine invocation. The child process is always awaited,
// on success and failure paths alike, so no process handle leaks.
func (e *ProcessEngine) Replay(ctx context.Context, req Request) (Outcome, error) {
	if e.Binary == "" {
		return Outcome{}, errors.New("process engine: no binary configured")
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Binary, e.args(req)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, fmt.Errorf("replay engine terminated: %w", ctxErr)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Outcome{}, fmt.Errorf("start replay engine: %w", runErr)
		}
		outcome, parseErr := parseOutcome(stdout.Bytes())
		if parseErr != nil {
			return Outcome{}, &WorkerFault{
				ExitCode: exitErr.ExitCode(),
				Detail:   strings.TrimSpace(stderr.String()),
			}
		}
		return outcome, nil
	}

	outcome, parseErr := parseOutcome(stdout.Bytes())
	if parseErr != nil {
		return Outcome{}, fmt.Errorf("replay engine produced no outcome: %w", parseErr)
	}
	return outcome, nil
}

func (e *ProcessEngine) args(req Request) []string {
	args := []string{
		"--input", req.InputDir,
		"--output", req.OutputDir,
		"--snapshot-interval", strconv.Itoa(req.SnapshotInterval),
	}
	if req.Write {
		args = append(args, "--write")
	}
	if req.Compare {
		args = append(args, "--compare")
	}
	if req.ExpandDiagnostics {
		args = append(args, "--expand-diagnostics")
	}
	if req.SourceSnapshotDir != "" {
		args = append(args, "--source-snapshots", req.SourceSnapshotDir)
	}
	return args
}

func parseOutcome(data []byte) (Outcome, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Outcome{}, errors.New("empty engine output")
	}
	var outcome Outcome
	if err := json.Unmarshal(trimmed, &outcome); err != nil {
		return Outcome{}, fmt.Errorf("decode engine output: %w", err)
	}
	return outcome, nil
}

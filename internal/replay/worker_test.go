package replay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldane/snapvet/internal/corpus"
)

// captureEngine records the request it was invoked with.
type captureEngine struct {
	req     Request
	outcome Outcome
	err     error
}

func (e *captureEngine) Replay(_ context.Context, req Request) (Outcome, error) {
	e.req = req
	return e.outcome, e.err
}

func TestWorker_Success(t *testing.T) {
	engine := &captureEngine{}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeCompare})

	assert.True(t, res.Success)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, "corpus/doc1", res.Folder)
	assert.Equal(t, ModeCompare, res.Mode)
}

func TestWorker_EngineErrors(t *testing.T) {
	engine := &captureEngine{outcome: Outcome{Errors: []string{"snapshot_0003.json: state mismatch"}}}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeCompare})

	assert.False(t, res.Success)
	assert.Equal(t, []string{"snapshot_0003.json: state mismatch"}, res.Diagnostics)
}

func TestWorker_EngineFault(t *testing.T) {
	engine := &captureEngine{err: &WorkerFault{ExitCode: 134, Detail: "SIGABRT"}}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeStress})

	require.False(t, res.Success)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "exit code 134")
}

func TestWorker_PanicBecomesFailure(t *testing.T) {
	w := &Worker{Engine: EngineFunc(func(context.Context, Request) (Outcome, error) {
		panic("engine blew up")
	})}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeCompare})

	require.False(t, res.Success)
	require.NotEmpty(t, res.Diagnostics)
	assert.Contains(t, res.Diagnostics[0], "engine blew up")
	assert.Equal(t, "corpus/doc1", res.Folder, "result is fully populated even on panic")
}

func TestWorker_WriteRequest(t *testing.T) {
	engine := &captureEngine{}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{
		Folder:           "corpus/doc1",
		Mode:             ModeWrite,
		SnapshotInterval: 1000,
	})
	require.True(t, res.Success)

	assert.True(t, engine.req.Write)
	assert.False(t, engine.req.Compare)
	assert.Equal(t, "corpus/doc1", engine.req.InputDir)
	assert.Equal(t, filepath.Join("corpus/doc1", corpus.CurrentSnapshots), engine.req.OutputDir)
	assert.Equal(t, 1000, engine.req.SnapshotInterval)
}

func TestWorker_CompareRequest(t *testing.T) {
	engine := &captureEngine{}
	w := &Worker{Engine: engine, ExpandDiagnostics: true}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeCompare})
	require.True(t, res.Success)

	assert.False(t, engine.req.Write)
	assert.True(t, engine.req.Compare)
	assert.True(t, engine.req.ExpandDiagnostics)
	assert.Equal(t, DefaultInterval, engine.req.SnapshotInterval)
	assert.NotEmpty(t, engine.req.OutputDir)
	assert.NotEqual(t, "corpus/doc1", engine.req.OutputDir, "compare writes to scratch")

	_, err := os.Stat(engine.req.OutputDir)
	assert.True(t, os.IsNotExist(err), "scratch dir is removed after the job settles")
}

func TestWorker_StressRequest(t *testing.T) {
	engine := &captureEngine{}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeStress})
	require.True(t, res.Success)

	assert.False(t, engine.req.Write)
	assert.False(t, engine.req.Compare, "stress neither persists nor compares")
	assert.Equal(t, StressInterval, engine.req.SnapshotInterval)
}

func TestWorker_ValidateRequest(t *testing.T) {
	engine := &captureEngine{}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{
		Folder:            "corpus/doc1",
		Mode:              ModeValidate,
		SourceSnapshotDir: "corpus/doc1/src_snapshots/1.0",
	})
	require.True(t, res.Success)

	assert.True(t, engine.req.Compare)
	assert.Equal(t, "corpus/doc1/src_snapshots/1.0", engine.req.SourceSnapshotDir)
	assert.Equal(t, "corpus/doc1/src_snapshots/1.0", res.SourceSnapshotDir)
}

func TestWorker_ValidateWithoutSource(t *testing.T) {
	engine := &captureEngine{}
	w := &Worker{Engine: engine}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeValidate})

	require.False(t, res.Success)
	require.NotEmpty(t, res.Diagnostics)
	assert.Contains(t, res.Diagnostics[0], "source snapshot dir")
}

func TestWorker_ContextError(t *testing.T) {
	w := &Worker{Engine: EngineFunc(func(ctx context.Context, _ Request) (Outcome, error) {
		return Outcome{}, errors.New("replay engine terminated: context deadline exceeded")
	})}

	res := w.Run(context.Background(), Params{Folder: "corpus/doc1", Mode: ModeCompare})

	require.False(t, res.Success)
	assert.Contains(t, res.Diagnostics[0], "terminated")
}

func TestIntervalFor(t *testing.T) {
	assert.Equal(t, StressInterval, IntervalFor(ModeStress))
	assert.Equal(t, DefaultInterval, IntervalFor(ModeCompare))
	assert.Equal(t, DefaultInterval, IntervalFor(ModeWrite))
	assert.Equal(t, DefaultInterval, IntervalFor(ModeValidate))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "write", ModeWrite.String())
	assert.Equal(t, "compare", ModeCompare.String())
	assert.Equal(t, "stress", ModeStress.String())
	assert.Equal(t, "validate", ModeValidate.String())
}

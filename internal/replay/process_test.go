package replay

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngineScript writes a shell script standing in for the replay engine
// binary.
func fakeEngineScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts are POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-engine")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestProcessEngine_Success(t *testing.T) {
	bin := fakeEngineScript(t, `echo '{"errors": []}'`)
	engine := &ProcessEngine{Binary: bin}

	outcome, err := engine.Replay(context.Background(), Request{
		InputDir: "in", OutputDir: "out", SnapshotInterval: 1000,
	})
	require.NoError(t, err)
	assert.Empty(t, outcome.Errors)
}

func TestProcessEngine_ReplayFailure(t *testing.T) {
	// The engine exits nonzero on replay failures but still reports a
	// structured outcome; that outcome wins over the exit code.
	bin := fakeEngineScript(t, `echo '{"errors": ["snapshot_0003.json: state mismatch"]}'; exit 1`)
	engine := &ProcessEngine{Binary: bin}

	outcome, err := engine.Replay(context.Background(), Request{InputDir: "in", OutputDir: "out", SnapshotInterval: 1000})
	require.NoError(t, err)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "snapshot_0003.json")
}

func TestProcessEngine_AbnormalExit(t *testing.T) {
	bin := fakeEngineScript(t, `echo "segfault at 0xdeadbeef" >&2; exit 139`)
	engine := &ProcessEngine{Binary: bin}

	_, err := engine.Replay(context.Background(), Request{InputDir: "in", OutputDir: "out", SnapshotInterval: 1000})
	require.Error(t, err)

	fault, ok := err.(*WorkerFault)
	require.True(t, ok, "abnormal exit without an outcome must be a WorkerFault")
	assert.Equal(t, 139, fault.ExitCode)
	assert.Contains(t, fault.Detail, "segfault")
	assert.Contains(t, fault.Error(), "exit code 139")
}

func TestProcessEngine_GarbageOutput(t *testing.T) {
	bin := fakeEngineScript(t, `echo "not json"`)
	engine := &ProcessEngine{Binary: bin}

	_, err := engine.Replay(context.Background(), Request{InputDir: "in", OutputDir: "out", SnapshotInterval: 1000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no outcome")
}

func TestProcessEngine_ArgumentMapping(t *testing.T) {
	// The script records its argv so the flag construction is observable.
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := fakeEngineScript(t, `echo "$@" > `+argsFile+`; echo '{"errors": []}'`)
	engine := &ProcessEngine{Binary: bin}

	_, err := engine.Replay(context.Background(), Request{
		InputDir:          "corpus/doc1",
		OutputDir:         "scratch",
		Compare:           true,
		ExpandDiagnostics: true,
		SnapshotInterval:  50,
		SourceSnapshotDir: "corpus/doc1/src_snapshots/1.0",
	})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	got := strings.TrimSpace(string(recorded))

	assert.Contains(t, got, "--input corpus/doc1")
	assert.Contains(t, got, "--output scratch")
	assert.Contains(t, got, "--snapshot-interval 50")
	assert.Contains(t, got, "--compare")
	assert.Contains(t, got, "--expand-diagnostics")
	assert.Contains(t, got, "--source-snapshots corpus/doc1/src_snapshots/1.0")
	assert.NotContains(t, got, "--write")
}

func TestProcessEngine_WriteFlag(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := fakeEngineScript(t, `echo "$@" > `+argsFile+`; echo '{"errors": []}'`)
	engine := &ProcessEngine{Binary: bin}

	_, err := engine.Replay(context.Background(), Request{
		InputDir: "corpus/doc1", OutputDir: "corpus/doc1/current_snapshots",
		Write: true, SnapshotInterval: 1000,
	})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "--write")
	assert.NotContains(t, string(recorded), "--compare")
}

func TestProcessEngine_Timeout(t *testing.T) {
	bin := fakeEngineScript(t, `sleep 10; echo '{"errors": []}'`)
	engine := &ProcessEngine{Binary: bin, Timeout: 50 * time.Millisecond}

	start := time.Now()
	_, err := engine.Replay(context.Background(), Request{InputDir: "in", OutputDir: "out", SnapshotInterval: 1000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProcessEngine_NoBinary(t *testing.T) {
	engine := &ProcessEngine{}
	_, err := engine.Replay(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no binary")
}

func TestProcessEngine_MissingBinary(t *testing.T) {
	engine := &ProcessEngine{Binary: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := engine.Replay(context.Background(), Request{InputDir: "in", OutputDir: "out", SnapshotInterval: 1000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start replay engine")
}

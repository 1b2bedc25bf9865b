package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldane/snapvet/internal/corpus"
)

func newFolder(t *testing.T) corpus.Folder {
	t.Helper()
	f := corpus.Folder{Name: "doc1", Path: filepath.Join(t.TempDir(), "doc1")}
	require.NoError(t, os.MkdirAll(f.CurrentSnapshotsDir(), 0755))
	return f
}

func TestStamp_RoundTrip(t *testing.T) {
	f := newFolder(t)

	require.NoError(t, WriteStamp(f, Stamp{SnapshotVersion: "3.1.4"}))

	stamp, err := ReadStamp(f)
	require.NoError(t, err)
	assert.Equal(t, "3.1.4", stamp.SnapshotVersion)
}

func TestReadStamp_Missing(t *testing.T) {
	f := newFolder(t)

	_, err := ReadStamp(f)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "missing stamp must be detectable with os.IsNotExist")
}

func TestReadStamp_Malformed(t *testing.T) {
	f := newFolder(t)
	require.NoError(t, os.WriteFile(f.StampPath(), []byte("not json"), 0644))

	_, err := ReadStamp(f)
	require.Error(t, err)
	assert.False(t, os.IsNotExist(err))
}

func TestReadStamp_EmptyVersion(t *testing.T) {
	f := newFolder(t)
	require.NoError(t, os.WriteFile(f.StampPath(), []byte(`{"snapshotVersion": ""}`), 0644))

	_, err := ReadStamp(f)
	require.Error(t, err)
}

func TestWriteStamp_FieldName(t *testing.T) {
	f := newFolder(t)
	require.NoError(t, WriteStamp(f, Stamp{SnapshotVersion: "2.0"}))

	data, err := os.ReadFile(f.StampPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"snapshotVersion"`)
}

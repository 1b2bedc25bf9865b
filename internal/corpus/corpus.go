// Package corpus discovers test-case folders under a corpus root.
//
// A test-case folder is an immediate subdirectory of the root that holds a
// recorded operation log. Folders are discovered fresh on every run and
// never cached; the filesystem is the source of truth.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
)

// On-disk layout of a test-case folder.
const (
	// OperationLog is the recorded operation sequence. A folder without
	// one is not a test case and is skipped.
	OperationLog = "messages.json"

	// CurrentSnapshots holds the accepted baseline snapshot set plus the
	// version stamp file.
	CurrentSnapshots = "current_snapshots"

	// ArchiveRoot holds one subdirectory per historical snapshot format
	// version, each an immutable copy of a past baseline.
	ArchiveRoot = "src_snapshots"

	// FailedSnapshots is a transient subfolder of CurrentSnapshots written
	// by the replay engine on stress failures, for post-mortem inspection.
	FailedSnapshots = "FailedSnapshots"

	// StampFile records the snapshot format version of the current
	// baseline, co-located with it.
	StampFile = "snapshot_version.json"
)

// Folder is one discovered test case.
type Folder struct {
	// Name is the directory name under the corpus root.
	Name string
	// Path is the absolute or root-relative folder path.
	Path string
}

// CurrentSnapshotsDir returns the folder's baseline directory path.
func (f Folder) CurrentSnapshotsDir() string {
	return filepath.Join(f.Path, CurrentSnapshots)
}

// FailedSnapshotsDir returns the transient failure-artifact directory path.
func (f Folder) FailedSnapshotsDir() string {
	return filepath.Join(f.Path, CurrentSnapshots, FailedSnapshots)
}

// ArchiveDir returns the root of the per-version snapshot archive.
func (f Folder) ArchiveDir() string {
	return filepath.Join(f.Path, ArchiveRoot)
}

// ArchiveVersionDir returns the archive directory for one format version.
// The version string is used verbatim; no normalization is applied.
func (f Folder) ArchiveVersionDir(version string) string {
	return filepath.Join(f.Path, ArchiveRoot, version)
}

// StampPath returns the path of the baseline's version stamp file.
func (f Folder) StampPath() string {
	return filepath.Join(f.Path, CurrentSnapshots, StampFile)
}

// OperationLogPath returns the path of the folder's operation log.
func (f Folder) OperationLogPath() string {
	return filepath.Join(f.Path, OperationLog)
}

// Discover lists the immediate subdirectories of root in directory-listing
// order and partitions them into replayable folders (holding an operation
// log) and skipped directory names. Non-directories are ignored entirely.
func Discover(root string) (folders []Folder, skipped []string, err error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("read corpus root %s: %w", root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		f := Folder{
			Name: entry.Name(),
			Path: filepath.Join(root, entry.Name()),
		}
		if _, statErr := os.Stat(f.OperationLogPath()); statErr != nil {
			skipped = append(skipped, entry.Name())
			continue
		}
		folders = append(folders, f)
	}

	return folders, skipped, nil
}

// ArchivedVersions lists the folder's archived snapshot format versions in
// directory-listing order. A missing archive root yields zero versions, not
// an error; the folder simply has no history to validate against.
func ArchivedVersions(f Folder) ([]string, error) {
	entries, err := os.ReadDir(f.ArchiveDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive %s: %w", f.ArchiveDir(), err)
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		versions = append(versions, entry.Name())
	}
	return versions, nil
}

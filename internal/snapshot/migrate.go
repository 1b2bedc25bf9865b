package snapshot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haldane/snapvet/internal/corpus"
)

// PreconditionError reports a write run against a folder that lacks the
// baseline state migration depends on. It indicates a caller
// misconfiguration, not a data problem, and aborts the whole run.
type PreconditionError struct {
	Folder  string
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("folder %s: write mode requires %s", e.Folder, e.Missing)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// CleanFailed removes the folder's transient FailedSnapshots artifacts left
// by a prior stress run. Absence is the common case and never an error.
func CleanFailed(f corpus.Folder) error {
	dir := f.FailedSnapshotsDir()
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	slog.Debug("removing stale failure artifacts", "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// ArchiveBaseline copies the folder's current baseline into
// src_snapshots/<version>/, where <version> comes from the baseline's stamp.
// The copy overwrites by name, so re-archiving an unchanged version replaces
// rather than duplicates files: exactly one archive folder exists per
// distinct format version ever written.
//
// Both the baseline directory and its stamp must exist; their absence is a
// PreconditionError.
func ArchiveBaseline(f corpus.Folder) (version string, err error) {
	baseline := f.CurrentSnapshotsDir()
	if _, statErr := os.Stat(baseline); statErr != nil {
		if os.IsNotExist(statErr) {
			return "", &PreconditionError{Folder: f.Name, Missing: "an existing " + corpus.CurrentSnapshots + " baseline"}
		}
		return "", fmt.Errorf("stat %s: %w", baseline, statErr)
	}

	stamp, stampErr := ReadStamp(f)
	if stampErr != nil {
		if os.IsNotExist(stampErr) {
			return "", &PreconditionError{Folder: f.Name, Missing: "a version stamp (" + corpus.StampFile + ")"}
		}
		return "", stampErr
	}

	dest := f.ArchiveVersionDir(stamp.SnapshotVersion)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("create archive %s: %w", dest, err)
	}

	entries, err := os.ReadDir(baseline)
	if err != nil {
		return "", fmt.Errorf("read baseline %s: %w", baseline, err)
	}
	for _, entry := range entries {
		// Subdirectories (a lingering FailedSnapshots, for example) are
		// not part of the baseline.
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(baseline, entry.Name())
		if err := copyFile(src, filepath.Join(dest, entry.Name())); err != nil {
			return "", err
		}
	}

	slog.Info("archived baseline", "folder", f.Name, "version", stamp.SnapshotVersion)
	return stamp.SnapshotVersion, nil
}

// Restamp rewrites the folder's version stamp with the running build's
// format version, marking the freshly written baseline as current. Called
// only after the write-mode replay succeeds.
func Restamp(f corpus.Folder, buildVersion string) error {
	if buildVersion == "" {
		return fmt.Errorf("folder %s: refusing to write empty version stamp", f.Name)
	}
	return WriteStamp(f, Stamp{SnapshotVersion: buildVersion})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dest, err)
	}
	return out.Close()
}

// Package snapshot manages the on-disk lifecycle of snapshot baselines:
// stale failure-artifact cleanup before a run, archival of superseded
// baselines into per-version folders, and version-stamp bookkeeping.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/haldane/snapvet/internal/corpus"
)

// Stamp records the snapshot format version of the current baseline.
// It lives next to the baseline files in current_snapshots.
type Stamp struct {
	SnapshotVersion string `json:"snapshotVersion"`
}

// ReadStamp reads the folder's version stamp.
// The raw os error is returned unwrapped enough for os.IsNotExist checks.
func ReadStamp(f corpus.Folder) (Stamp, error) {
	data, err := os.ReadFile(f.StampPath())
	if err != nil {
		return Stamp{}, err
	}
	var stamp Stamp
	if err := json.Unmarshal(data, &stamp); err != nil {
		return Stamp{}, fmt.Errorf("decode stamp %s: %w", f.StampPath(), err)
	}
	if stamp.SnapshotVersion == "" {
		return Stamp{}, fmt.Errorf("stamp %s has empty snapshotVersion", f.StampPath())
	}
	return stamp, nil
}

// WriteStamp rewrites the folder's version stamp, marking the baseline in
// current_snapshots as produced by the given format version.
func WriteStamp(f corpus.Folder, stamp Stamp) error {
	data, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stamp: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(f.StampPath(), data, 0644); err != nil {
		return fmt.Errorf("write stamp %s: %w", f.StampPath(), err)
	}
	return nil
}

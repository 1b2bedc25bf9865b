package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/haldane/snapvet/internal/corpus"
	"github.com/haldane/snapvet/internal/replay"
	"github.com/haldane/snapvet/internal/snapshot"
)

// unit is one schedulable replay job plus an optional post-step that runs
// after the replay settles, on the same goroutine as the replay itself.
type unit struct {
	params replay.Params
	// after runs only when the replay succeeded. For write mode this is
	// the version-stamp rewrite; migration precedes the replay, the
	// restamp follows it, strictly sequential within the folder.
	after func(res replay.Result) error
}

// workflow prepares the units a folder contributes in one mode. Preparing
// may have filesystem side effects (baseline archival); those happen on the
// single dispatcher goroutine, before any of the folder's jobs run.
type workflow interface {
	prepare(f corpus.Folder, interval int) ([]unit, error)
}

// standardWorkflow covers compare and stress: exactly one job per folder,
// no pre- or post-steps beyond the shared cleanup.
type standardWorkflow struct {
	mode replay.Mode
}

func (w standardWorkflow) prepare(f corpus.Folder, interval int) ([]unit, error) {
	return []unit{{
		params: replay.Params{
			Folder:           f.Path,
			Mode:             w.mode,
			SnapshotInterval: interval,
		},
	}}, nil
}

// writeWorkflow archives the superseded baseline before the replay and
// restamps the folder with the running build's format version after it.
type writeWorkflow struct {
	buildVersion string
}

func (w writeWorkflow) prepare(f corpus.Folder, interval int) ([]unit, error) {
	archived, err := snapshot.ArchiveBaseline(f)
	if err != nil {
		return nil, err
	}
	slog.Debug("baseline archived, replay will rewrite it",
		"folder", f.Name, "superseded_version", archived)

	return []unit{{
		params: replay.Params{
			Folder:           f.Path,
			Mode:             replay.ModeWrite,
			SnapshotInterval: interval,
		},
		after: func(replay.Result) error {
			if err := snapshot.Restamp(f, w.buildVersion); err != nil {
				return fmt.Errorf("restamp %s: %w", f.Name, err)
			}
			return nil
		},
	}}, nil
}

// validateWorkflow fans one folder out into one job per archived snapshot
// format version. A folder with no archive contributes zero jobs.
type validateWorkflow struct{}

func (validateWorkflow) prepare(f corpus.Folder, interval int) ([]unit, error) {
	versions, err := corpus.ArchivedVersions(f)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		slog.Debug("no archived snapshot versions", "folder", f.Name)
		return nil, nil
	}

	units := make([]unit, 0, len(versions))
	for _, version := range versions {
		units = append(units, unit{
			params: replay.Params{
				Folder:            f.Path,
				Mode:              replay.ModeValidate,
				SnapshotInterval:  interval,
				SourceSnapshotDir: f.ArchiveVersionDir(version),
			},
		})
	}
	return units, nil
}

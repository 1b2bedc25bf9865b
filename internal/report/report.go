// Package report aggregates per-job replay outcomes into a run report and
// renders it as text or byte-stable canonical JSON.
package report

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the settled result of one replay job, flattened for reporting.
type Outcome struct {
	Folder        string
	Mode          string
	SourceVersion string // set only for validate jobs
	Success       bool
	Diagnostics   []string
}

// Run collects every outcome of one harness invocation.
// Add is safe for concurrent use; jobs complete in arbitrary order.
type Run struct {
	ID        string
	Mode      string
	StartedAt time.Time

	mu       sync.Mutex
	outcomes []Outcome
}

// NewRun creates a run report tagged with a fresh UUID.
func NewRun(mode string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
}

// Add records one settled job outcome.
func (r *Run) Add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// Outcomes returns a copy of the recorded outcomes sorted by folder, then
// source version. Sorting makes output deterministic even though jobs
// complete out of order.
func (r *Run) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Folder != out[j].Folder {
			return out[i].Folder < out[j].Folder
		}
		return out[i].SourceVersion < out[j].SourceVersion
	})
	return out
}

// Passed returns the number of successful jobs.
func (r *Run) Passed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed jobs.
func (r *Run) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}

// Total returns the number of recorded jobs.
func (r *Run) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// RenderText writes a human-readable report: one line per job, one
// diagnostic block per failure, then a summary line.
func (r *Run) RenderText(w io.Writer, verbose bool) {
	for _, o := range r.Outcomes() {
		label := o.Folder
		if o.SourceVersion != "" {
			label = fmt.Sprintf("%s (format %s)", o.Folder, o.SourceVersion)
		}
		if o.Success {
			fmt.Fprintf(w, "✓ %s\n", label)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", label)
		for _, d := range o.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Replay Summary [%s]: %d passed, %d failed, %d total\n",
		r.Mode, r.Passed(), r.Failed(), r.Total())
	if verbose {
		fmt.Fprintf(w, "Run ID: %s\n", r.ID)
	}
}

// CanonicalJSON serializes the run with sorted keys, NFC-normalized strings
// and sorted outcomes, so two identical runs produce identical bytes.
func (r *Run) CanonicalJSON() ([]byte, error) {
	outcomes := r.Outcomes()
	list := make([]any, len(outcomes))
	for i, o := range outcomes {
		diags := make([]any, len(o.Diagnostics))
		for j, d := range o.Diagnostics {
			diags[j] = d
		}
		entry := map[string]any{
			"folder":      o.Folder,
			"mode":        o.Mode,
			"success":     o.Success,
			"diagnostics": diags,
		}
		if o.SourceVersion != "" {
			entry["source_version"] = o.SourceVersion
		}
		list[i] = entry
	}

	return MarshalCanonical(map[string]any{
		"run_id":     r.ID,
		"mode":       r.Mode,
		"started_at": r.StartedAt.Format(time.RFC3339),
		"outcomes":   list,
		"passed":     r.Passed(),
		"failed":     r.Failed(),
		"total":      r.Total(),
	})
}

// Package gate provides bounded admission control for concurrent replay jobs.
//
// The gate is a counting semaphore with a FIFO wait queue: any number of
// goroutines may admit jobs concurrently, and admission blocks until a slot
// frees. This replaces manual in-flight counting in the dispatcher and keeps
// the worker machinery mode-agnostic.
package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Job is one unit of work admitted through the gate.
// A nil error means the job settled successfully.
type Job func(ctx context.Context) error

// Gate bounds the number of simultaneously running jobs to a fixed capacity.
//
// If capacity jobs are admitted and none finish, further Go calls block until
// one does. That is intended backpressure, not a defect: callers must not
// admit jobs they do not intend to run to completion.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted
	wg       sync.WaitGroup

	inFlight atomic.Int64

	mu       sync.Mutex
	admitted int
	settled  int
	firstErr error
}

// New creates a gate with the given capacity.
// Panics if capacity is not positive; that is a caller misconfiguration,
// not a runtime condition.
func New(capacity int) *Gate {
	if capacity < 1 {
		panic(fmt.Sprintf("gate: capacity must be positive, got %d", capacity))
	}
	return &Gate{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Capacity returns the fixed slot count set at construction.
func (g *Gate) Capacity() int { return int(g.capacity) }

// InFlight returns the number of jobs currently running.
// Intended for diagnostics and tests; the value is immediately stale.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Go admits job, blocking the caller until a slot is free, then runs it on
// its own goroutine. The slot is released when the job settles, success or
// failure. Returns an error only if ctx is cancelled before admission; once
// admitted, a job always runs.
func (g *Gate) Go(ctx context.Context, job Job) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("gate: admission cancelled: %w", err)
	}

	g.mu.Lock()
	g.admitted++
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.sem.Release(1)

		g.inFlight.Add(1)
		err := job(ctx)
		g.inFlight.Add(-1)

		g.mu.Lock()
		g.settled++
		if err != nil && g.firstErr == nil {
			g.firstErr = err
		}
		g.mu.Unlock()
	}()

	return nil
}

// Wait blocks until every admitted job has settled and returns the first
// failure, if any. Jobs admitted after a failure still run to completion;
// the gate never cancels early.
func (g *Gate) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.settled != g.admitted {
		// wg.Wait returned with jobs unaccounted for; the bookkeeping
		// above is broken, not the caller.
		panic(fmt.Sprintf("gate: %d admitted but %d settled", g.admitted, g.settled))
	}
	return g.firstErr
}

// Admitted returns the total number of jobs admitted so far.
func (g *Gate) Admitted() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.admitted
}

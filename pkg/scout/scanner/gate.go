package scanner

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate admits per-file analyses. *perf.Manager satisfies it.
type Gate interface {
	// AcquireWorker blocks until an analysis may start.
	AcquireWorker(ctx context.Context) error

	// ReleaseWorker returns the slot and reports the analysed size and outcome.
	ReleaseWorker(size int64, err error)
}

// fixedGate is a plain counting semaphore used when no resource manager
// is configured.
type fixedGate struct {
	sem *semaphore.Weighted
}

// NewFixedGate returns a Gate admitting at most n concurrent analyses.
func NewFixedGate(n int) Gate {
	if n < 1 {
		n = 1
	}
	return &fixedGate{sem: semaphore.NewWeighted(int64(n))}
}

func (g *fixedGate) AcquireWorker(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *fixedGate) ReleaseWorker(int64, error) {
	g.sem.Release(1)
}

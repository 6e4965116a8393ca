// Package pool bounds concurrent CPU-heavy, non-secret exponentiation work
// (proof verification fan-out across n parties, per-party RVSS checks)
// behind a worker limit. Every *secret*-exponent operation still goes
// through pkg/bign's constant-time path on the calling goroutine; this
// pool only parallelizes the public, independent work around it.
package pool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool runs bounded-concurrency batches of independent work.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a pool with the given worker limit. A limit <= 0 defaults to
// GOMAXPROCS.
func New(limit int) *Pool {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// NewNoLimit returns a pool with a generous limit of four workers per CPU,
// for tests and small party counts.
func NewNoLimit() *Pool {
	return New(runtime.NumCPU() * 4)
}

// Parallel runs fn(i) for every i in [0, n), propagating the first error.
// Every unit of work must be independent; in this module it backs Map's
// per-party verification-key computation in dkg.
func (p *Pool) Parallel(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Map runs fn(i) for every i in [0, n) and collects the results in order,
// propagating the first error.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	err := p.Parallel(ctx, n, func(ctx context.Context, i int) error {
		v, err := fn(ctx, i)
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

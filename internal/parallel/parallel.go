// Package parallel distributes independent, index-addressed work items across
// a bounded set of goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves the worker count. Zero or negative means one worker per CPU,
// and the count never exceeds the number of items.
func Workers(numWorkers, items int) int {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if items > 0 && numWorkers > items {
		numWorkers = items
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	return numWorkers
}

// ForEach runs fn(ctx, i) for every i in [0, n) using at most numWorkers
// goroutines.
//
// fn must only write to state owned by index i so that the assembled output is
// independent of completion order. The first error cancels the context handed
// to the remaining calls and is returned once every started call has finished.
func ForEach(ctx context.Context, n, numWorkers int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(numWorkers, n))

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

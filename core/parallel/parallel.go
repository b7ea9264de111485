// Package parallel runs independent units of work on a bounded pool.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves an n_jobs style setting: values <= 0 mean one worker per
// CPU, and the result never exceeds items.
func Workers(nJobs, items int) int {
	workers := nJobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// ForEach calls fn(ctx, i) for every i in [0, items) using at most workers
// goroutines. fn reports per-item outcomes through its own result slot; an
// error returned by fn is treated as fatal and stops scheduling of items not
// yet started. Items are started in index order.
//
// Once ctx is done no further items are started and ctx.Err() is returned.
func ForEach(ctx context.Context, items, workers int, fn func(ctx context.Context, i int) error) error {
	if items == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers, items))

	for i := 0; i < items; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
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

// Parallelize divides items into contiguous chunks, one per CPU, and runs
// fn(start, end) for each chunk concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	numWorkers := Workers(0, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var g errgroup.Group
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold; otherwise fn runs once over the full range.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Package pipeline runs batch steps one item at a time.
package pipeline

import (
	"context"
	"time"
)

type Options struct {
	// Delay is slept between consecutive items, not after the last one.
	Delay time.Duration
}

// Run applies step to each item in order and collects the results. A step
// never aborts the batch; it encodes its own failure in R. Cancelling ctx
// stops before the next item and returns the results gathered so far.
func Run[T, R any](ctx context.Context, items []T, step func(ctx context.Context, index int, item T) R, opts Options) []R {
	results := make([]R, 0, len(items))

	for i, item := range items {
		if i > 0 && opts.Delay > 0 {
			timer := time.NewTimer(opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return results
		}

		results = append(results, step(ctx, i, item))
	}

	return results
}

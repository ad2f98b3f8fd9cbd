package dispatch

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/mwcproject/mwcwallet/internal/task"
)

type batchResult struct {
	res task.Result
	err error
}

// Batch submits tasks and yields their results as they arrive. At most limit
// tasks are outstanding at once, mwc713 still runs them one by one in
// submission order. A failed Submit is yielded and ends the batch. Tasks
// still queued when the consumer stops or ctx is done are cancelled.
//
//	for res, err := range d.Batch(ctx, 4, slices.Values(tasks)) {}
func (d *Dispatcher) Batch(ctx context.Context, limit int, tasks iter.Seq[task.Task]) iter.Seq2[task.Result, error] {
	if limit < 1 {
		limit = 1
	}
	return func(yield func(task.Result, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit + 1)
		results := make(chan batchResult, limit)
		defer func() {
			cancel()
			for range results {
			}
		}()

		g.Go(func() error {
			for t := range tasks {
				if err := gctx.Err(); err != nil {
					return err
				}
				h, err := d.Submit(t)
				if err != nil {
					select {
					case results <- batchResult{err: err}:
					case <-gctx.Done():
					}
					return err
				}
				g.Go(func() error {
					res, err := h.Wait(gctx)
					if err != nil {
						d.Cancel(h.ID())
						return err
					}
					select {
					case results <- batchResult{res: res}:
						return nil
					case <-gctx.Done():
						return gctx.Err()
					}
				})
			}
			return nil
		})

		go func() {
			_ = g.Wait()
			close(results)
		}()

		for r := range results {
			if !yield(r.res, r.err) {
				return
			}
		}
	}
}

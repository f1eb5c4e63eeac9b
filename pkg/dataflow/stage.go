// Package dataflow provides channel based pipeline stages with bounded
// concurrency and retries.
package dataflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MapFunc transforms one item. A nil result with a nil error drops the item.
type MapFunc func(interface{}) (interface{}, error)

// ItemError is passed to the error handler when an item fails after all retries.
type ItemError struct {
	Item     interface{}
	Attempts int
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %v failed after %d attempt(s): %v", e.Item, e.Attempts, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// From emits items in order and closes the channel.
func From(ctx context.Context, items ...interface{}) <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for _, item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Map applies fn to every item of in using the configured number of workers.
// Output order is not preserved when more than one worker runs.
func Map(ctx context.Context, in <-chan interface{}, fn MapFunc, opts ...Option) <-chan interface{} {
	cfg := applyOptions(opts)
	out := make(chan interface{}, cfg.bufferSize)

	stageCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go func() {
			defer wg.Done()
			for {
				var item interface{}
				var ok bool
				select {
				case <-stageCtx.Done():
					return
				case item, ok = <-in:
					if !ok {
						return
					}
				}

				result, err := cfg.execute(stageCtx, fn, item)
				if err != nil {
					if cfg.errorHandler != nil && !cfg.errorHandler(err) {
						stop()
						return
					}
					continue
				}
				if result == nil {
					continue
				}

				select {
				case out <- result:
				case <-stageCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		stop()
		close(out)
	}()
	return out
}

func (c *stageConfig) execute(ctx context.Context, fn MapFunc, item interface{}) (interface{}, error) {
	attempts := 0
	for {
		attempts++
		result, err := fn(item)
		if err == nil {
			return result, nil
		}
		if !c.retry.retryable(err, attempts) {
			return nil, &ItemError{Item: item, Attempts: attempts, Err: err}
		}
		if d := c.retry.delay(attempts); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, &ItemError{Item: item, Attempts: attempts, Err: ctx.Err()}
			}
		}
	}
}

// ForEach calls fn for every item until in is closed. It returns the first
// error from fn, or the context error if ctx ends first. Remaining items are
// drained so upstream stages can exit.
func ForEach(ctx context.Context, in <-chan interface{}, fn func(interface{}) error) error {
	for {
		select {
		case <-ctx.Done():
			go drain(in)
			return ctx.Err()
		case item, ok := <-in:
			if !ok {
				return nil
			}
			if err := fn(item); err != nil {
				go drain(in)
				return err
			}
		}
	}
}

func drain(in <-chan interface{}) {
	for range in {
	}
}

package dataflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/locvowork/chartdata/pkg/tablesource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_Concurrency(t *testing.T) {
	const numWorkers = 4
	const numMessages = 50
	ctx := context.Background()

	items := make([]interface{}, numMessages)
	for i := range items {
		items[i] = i
	}

	var inFlight, peak int32
	res := Map(ctx, From(ctx, items...), func(msg interface{}) (interface{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return msg.(int) * 2, nil
	}, WithWorkers(numWorkers), WithBufferSize(numMessages))

	var got []int
	err := ForEach(ctx, res, func(msg interface{}) error {
		got = append(got, msg.(int))
		return nil
	})

	assert.NoError(t, err)
	assert.Len(t, got, numMessages)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(numWorkers))
	sort.Ints(got)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 2*(numMessages-1), got[numMessages-1])
}

func TestMap_RetryIf(t *testing.T) {
	ctx := context.Background()
	permanent := errors.New("permanent")

	var attempts int32
	var mu sync.Mutex
	var failures []error
	res := Map(ctx, From(ctx, "a"), func(msg interface{}) (interface{}, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, permanent
	},
		WithRetry(5, ConstantBackoff(time.Millisecond)),
		WithRetryIf(func(err error) bool { return !errors.Is(err, permanent) }),
		WithErrorHandler(func(err error) bool {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
			return true
		}),
	)

	assert.NoError(t, ForEach(ctx, res, func(interface{}) error { return nil }))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	if assert.Len(t, failures, 1) {
		var itemErr *ItemError
		assert.True(t, errors.As(failures[0], &itemErr))
		assert.Equal(t, "a", itemErr.Item)
		assert.Equal(t, 1, itemErr.Attempts)
		assert.ErrorIs(t, failures[0], permanent)
	}
}

func TestMap_RetryTransientQueryErrors(t *testing.T) {
	ctx := context.Background()
	serialization := &pq.Error{Code: "40001", Message: "could not serialize access"}

	t.Run("RecoversWithinBudget", func(t *testing.T) {
		var attempts int32
		res := Map(ctx, From(ctx, "visits"), func(msg interface{}) (interface{}, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return nil, serialization
			}
			return msg.(string) + ":ok", nil
		},
			WithRetry(2, ConstantBackoff(time.Millisecond)),
			WithRetryIf(tablesource.Transient),
		)

		var got []interface{}
		require.NoError(t, ForEach(ctx, res, func(msg interface{}) error {
			got = append(got, msg)
			return nil
		}))
		assert.Equal(t, []interface{}{"visits:ok"}, got)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("BudgetExhausted", func(t *testing.T) {
		var attempts int32
		var itemErr *ItemError
		res := Map(ctx, From(ctx, "visits"), func(interface{}) (interface{}, error) {
			atomic.AddInt32(&attempts, 1)
			return nil, serialization
		},
			WithRetry(3, ConstantBackoff(time.Millisecond)),
			WithRetryIf(tablesource.Transient),
			WithErrorHandler(func(err error) bool {
				errors.As(err, &itemErr)
				return true
			}),
		)

		require.NoError(t, ForEach(ctx, res, func(interface{}) error { return nil }))
		assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))
		require.NotNil(t, itemErr)
		assert.Equal(t, 4, itemErr.Attempts)
		assert.True(t, tablesource.Transient(itemErr))
	})

	t.Run("SyntaxErrorNotRetried", func(t *testing.T) {
		var attempts int32
		var itemErr *ItemError
		res := Map(ctx, From(ctx, "broken"), func(interface{}) (interface{}, error) {
			atomic.AddInt32(&attempts, 1)
			return nil, &pq.Error{Code: "42601", Message: "syntax error"}
		},
			WithRetry(3, ConstantBackoff(time.Millisecond)),
			WithRetryIf(tablesource.Transient),
			WithErrorHandler(func(err error) bool {
				errors.As(err, &itemErr)
				return true
			}),
		)

		require.NoError(t, ForEach(ctx, res, func(interface{}) error { return nil }))
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
		require.NotNil(t, itemErr)
		assert.Equal(t, "broken", itemErr.Item)
		assert.Equal(t, 1, itemErr.Attempts)
	})

	t.Run("ContextEndsDuringBackoff", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		var itemErr *ItemError
		res := Map(cctx, From(cctx, "visits"), func(interface{}) (interface{}, error) {
			return nil, serialization
		},
			WithRetry(5, ConstantBackoff(time.Hour)),
			WithErrorHandler(func(err error) bool {
				errors.As(err, &itemErr)
				return true
			}),
		)

		for range res {
		}
		require.NotNil(t, itemErr)
		assert.Equal(t, 1, itemErr.Attempts)
		assert.ErrorIs(t, itemErr, context.DeadlineExceeded)
	})
}

func TestBackoff(t *testing.T) {
	exp := ExponentialBackoff(100 * time.Millisecond)
	for attempt, want := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		6: 3200 * time.Millisecond,
	} {
		assert.Equal(t, want, exp(attempt), "attempt %d", attempt)
	}

	capped := exp.Capped(time.Second)
	assert.Equal(t, 400*time.Millisecond, capped(3))
	assert.Equal(t, time.Second, capped(4))
	assert.Equal(t, time.Second, capped(10))

	assert.Equal(t, 5*time.Millisecond, ConstantBackoff(5*time.Millisecond)(7))
}

func TestRetryPolicy(t *testing.T) {
	transient := &pq.Error{Code: "08006"}
	p := retryPolicy{maxRetries: 2, retryIf: tablesource.Transient}

	assert.True(t, p.retryable(transient, 1))
	assert.True(t, p.retryable(transient, 2))
	assert.False(t, p.retryable(transient, 3))
	assert.False(t, p.retryable(errors.New("no rows"), 1))
	assert.Zero(t, p.delay(1))

	assert.True(t, retryPolicy{maxRetries: 1}.retryable(errors.New("any"), 1))
	assert.False(t, retryPolicy{}.retryable(errors.New("any"), 1))
}

func TestMap_ErrorHandlerStops(t *testing.T) {
	ctx := context.Background()
	res := Map(ctx, From(ctx, 1, 2, 3), func(msg interface{}) (interface{}, error) {
		if msg.(int) == 1 {
			return nil, errors.New("boom")
		}
		return msg, nil
	}, WithErrorHandler(func(error) bool { return false }))

	var got []interface{}
	assert.NoError(t, ForEach(ctx, res, func(msg interface{}) error {
		got = append(got, msg)
		return nil
	}))
	assert.Empty(t, got)
}

func TestMap_NilResultDropped(t *testing.T) {
	ctx := context.Background()
	res := Map(ctx, From(ctx, 1, 2, 3, 4), func(msg interface{}) (interface{}, error) {
		if msg.(int)%2 == 0 {
			return nil, nil
		}
		return msg, nil
	})

	var got []interface{}
	assert.NoError(t, ForEach(ctx, res, func(msg interface{}) error {
		got = append(got, msg)
		return nil
	}))
	assert.Equal(t, []interface{}{1, 3}, got)
}

func TestForEach(t *testing.T) {
	t.Run("StopsOnError", func(t *testing.T) {
		ctx := context.Background()
		stop := errors.New("stop")
		var seen int
		err := ForEach(ctx, From(ctx, 1, 2, 3), func(msg interface{}) error {
			seen++
			if msg.(int) == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 2, seen)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		block := make(chan interface{})
		err := ForEach(ctx, block, func(interface{}) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
		close(block)
	})
}

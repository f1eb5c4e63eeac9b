package dataflow

import (
	"time"
)

// Option configures a stage.
type Option func(*stageConfig)

// Backoff returns the wait before retry number attempt, starting at 1.
type Backoff func(attempt int) time.Duration

// Capped limits every delay of b to max.
func (b Backoff) Capped(max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if d := b(attempt); d < max {
			return d
		}
		return max
	}
}

// ConstantBackoff waits d before every retry.
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration {
		return d
	}
}

// ExponentialBackoff waits initial before the first retry and doubles the
// wait for each one after it.
func ExponentialBackoff(initial time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt <= 1 {
			return initial
		}
		return initial << (attempt - 1)
	}
}

// retryPolicy decides whether a failed attempt is tried again.
type retryPolicy struct {
	maxRetries int
	backoff    Backoff
	retryIf    func(error) bool
}

// retryable reports whether err, seen on attempt number attempts, earns another attempt.
func (p retryPolicy) retryable(err error, attempts int) bool {
	if attempts > p.maxRetries {
		return false
	}
	return p.retryIf == nil || p.retryIf(err)
}

func (p retryPolicy) delay(attempt int) time.Duration {
	if p.backoff == nil {
		return 0
	}
	return p.backoff(attempt)
}

type stageConfig struct {
	workers    int
	bufferSize int
	retry      retryPolicy
	// errorHandler sees every error that survives the retries. Returning true
	// skips the item; returning false stops the stage.
	errorHandler func(error) bool
}

func applyOptions(opts []Option) *stageConfig {
	c := &stageConfig{workers: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithWorkers sets how many items a stage processes at once. Default 1.
func WithWorkers(n int) Option {
	return func(c *stageConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBufferSize sets the capacity of the stage's output channel.
func WithBufferSize(n int) Option {
	return func(c *stageConfig) {
		if n >= 0 {
			c.bufferSize = n
		}
	}
}

// WithRetry allows up to maxRetries attempts after the first, waiting
// backoff(attempt) between them.
func WithRetry(maxRetries int, backoff Backoff) Option {
	return func(c *stageConfig) {
		c.retry.maxRetries = maxRetries
		c.retry.backoff = backoff
	}
}

// WithRetryIf limits retries to errors for which pred returns true, such as
// serialization failures or dropped connections.
func WithRetryIf(pred func(error) bool) Option {
	return func(c *stageConfig) {
		c.retry.retryIf = pred
	}
}

// WithErrorHandler receives each *ItemError. Returning true skips the item;
// returning false stops the stage and closes its output. Without a handler
// failed items are dropped.
func WithErrorHandler(h func(error) bool) Option {
	return func(c *stageConfig) {
		c.errorHandler = h
	}
}

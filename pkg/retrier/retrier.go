// Package retrier provides exponential backoff for flaky broker API calls.
package retrier

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 15 * time.Second
	defaultGrowth      = 2.0
	defaultMaxAttempts = 4
	defaultJitter      = 0.2
)

// permanentError marks an error that must not be retried, such as an order
// rejected by the broker for a business reason.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the retrier gives up on it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff retries an operation with exponentially growing, jittered delays.
// The zero value is not usable; construct with New.
type Backoff struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	growth      float64
	maxAttempts int
	jitter      float64
	// onRetry, when set, is called before every retry sleep.
	onRetry func(attempt int, delay time.Duration, err error)
}

// Option configures a Backoff.
type Option func(*Backoff)

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(b *Backoff) { b.baseDelay = d }
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(b *Backoff) { b.maxDelay = d }
}

// WithGrowth sets the delay growth factor.
func WithGrowth(g float64) Option {
	return func(b *Backoff) { b.growth = g }
}

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(n int) Option {
	return func(b *Backoff) { b.maxAttempts = n }
}

// WithJitter sets the relative jitter applied to every delay, 0.0 to 1.0.
func WithJitter(j float64) Option {
	return func(b *Backoff) { b.jitter = j }
}

// WithOnRetry installs a callback invoked before every retry.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(b *Backoff) { b.onRetry = fn }
}

// New creates a Backoff tuned for broker API rate limits, with optional overrides.
func New(opts ...Option) *Backoff {
	b := &Backoff{
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		growth:      defaultGrowth,
		maxAttempts: defaultMaxAttempts,
		jitter:      defaultJitter,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes fn until it succeeds, returns a permanent error, the attempts
// run out or the context ends. The last error is returned as-is so callers
// can still match it with errors.Is.
func (b *Backoff) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := b.baseDelay

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var permanent *permanentError
		if errors.As(lastErr, &permanent) {
			return permanent.err
		}
		if attempt == b.maxAttempts {
			break
		}

		sleep := b.jittered(delay)
		if b.onRetry != nil {
			b.onRetry(attempt, sleep, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * b.growth)
		if delay > b.maxDelay {
			delay = b.maxDelay
		}
	}

	return lastErr
}

func (b *Backoff) jittered(delay time.Duration) time.Duration {
	offset := (rand.Float64()*2 - 1) * b.jitter * float64(delay)
	sleep := time.Duration(float64(delay) + offset)
	if sleep < 0 {
		return 0
	}
	return sleep
}

// RunWithData executes fn with retries and returns its value.
func RunWithData[T any](ctx context.Context, b *Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.Run(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

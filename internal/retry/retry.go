// Package retry provides the single retry policy shared by every external
// capability call in the pipeline. Only errors explicitly tagged as
// transient are retried; semantic failures (refusals, empty responses,
// missing credentials) surface immediately.
package retry

import (
	"context"
	"errors"
	"time"
)

// TransientError marks an error as retryable. Transport-level failures
// (network errors, 5xx responses, rate limiting) are wrapped in this type by
// the capability clients so the policy can distinguish them from semantic
// failures.
type TransientError struct {
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so the retry policy will retry it. A nil err returns
// nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or any error it wraps) is tagged as
// transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Policy describes an exponential backoff retry schedule.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the sleep before the second attempt.
	BaseDelay time.Duration

	// Multiplier scales the delay after every failed attempt.
	Multiplier float64

	// Sleep is the sleep function used between attempts. It must respect
	// ctx cancellation. If nil, a default ctx-aware sleep is used. Tests
	// inject a recording fake here.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is the schedule mandated for every capability call: five
// attempts with delays of 2s, 4s, 8s and 16s between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
	}
}

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs op under the policy. Transient failures are retried with
// exponential backoff until the attempt budget is exhausted, at which point
// the last error is returned. Non-transient failures and context
// cancellation abort immediately. No sleep happens after the final attempt.
func Do[T any](ctx context.Context, p Policy,
	op func(ctx context.Context) (T, error)) (T, error) {

	var zero T

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		val, err := op(ctx)
		if err == nil {
			return val, nil
		}
		if !IsTransient(err) {
			return zero, err
		}

		lastErr = err

		// The final attempt's failure surfaces without sleeping.
		if attempt == p.MaxAttempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return zero, lastErr
}

package deps

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks an error as transient: the caller should retry the
// operation that produced it. Errors not wrapped this way are treated as
// permanent and stop a RetryWithBackoff loop immediately.
type RetryableError struct{ Err error }

// Retryable wraps err so RetryWithBackoff will retry the operation that
// produced it. Returns nil if err is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error implements error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *RetryableError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// RetryWithBackoff runs fn up to attempts times, doubling delay after each
// failed attempt that returned a Retryable error. A non-retryable error,
// or the final attempt's error, is returned as-is. If ctx is cancelled
// while waiting between attempts, ctx.Err() is returned immediately.
func RetryWithBackoff(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

package concurrency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy describes a bounded sequence of attempts with a fixed delay.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the wait between consecutive attempts.
	Delay time.Duration
	// OnRetry, if set, is called after each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that RetryValue stops immediately and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryValue runs fn until it succeeds or the policy is exhausted. The final
// error wraps the error of the last attempt. Each failed attempt is logged
// with its attempt number.
func RetryValue[T any](ctx context.Context, p RetryPolicy, logger zerolog.Logger, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("attempt failed")

		if IsPermanent(err) {
			return zero, fmt.Errorf("%s: %w", operation, err)
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleepContext(ctx, p.Delay); err != nil {
			return zero, fmt.Errorf("%s interrupted after %d attempts: %w", operation, attempt, errors.Join(err, lastErr))
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

// Package concurrency provides the execution primitives of the analysis
// pipeline: a rolling-window rate limiter, a bounded retry policy and an
// order-preserving bounded-parallel task runner.
package concurrency

import (
	"context"
	"fmt"
	"time"
)

// WindowLimiter admits at most maxCalls acquisitions within any rolling
// window. Admission decisions are serialized: a caller holds the admission
// slot while it checks the window and, if needed, waits for the oldest call
// to age out. Work performed after Acquire returns is not serialized.
//
// A single WindowLimiter is meant to be shared by every caller of the
// rate-limited provider in the process.
type WindowLimiter struct {
	maxCalls int
	window   time.Duration

	// admit is a one-slot semaphore guarding calls; a channel is used instead
	// of a mutex so that waiting callers can observe context cancellation.
	admit chan struct{}
	calls []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindowLimiter creates a limiter admitting maxCalls per window.
func NewWindowLimiter(maxCalls int, window time.Duration) (*WindowLimiter, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("max calls must be positive, got %d", maxCalls)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}
	return &WindowLimiter{
		maxCalls: maxCalls,
		window:   window,
		admit:    make(chan struct{}, 1),
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Acquire blocks until a call slot is available or ctx is done.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	select {
	case l.admit <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.admit }()

	for {
		now := l.now()
		l.evict(now)
		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			return nil
		}

		wait := l.calls[0].Add(l.window).Sub(now)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// evict drops admissions that are a full window old or older.
func (l *WindowLimiter) evict(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

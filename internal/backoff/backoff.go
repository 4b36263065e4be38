// Package backoff provides the retry and settling policies used against the
// remote planes. Delays are plain values so tests can inject zero-delay
// policies instead of sleeping.
package backoff

import (
	"context"
	"time"
)

// Sleeper blocks for a duration or until the context is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy describes a bounded retry schedule: Attempts tries total, with a
// per-attempt delay of Base + Growth*attempt (attempt counts from 0).
// Growth of zero gives a fixed delay.
type Policy struct {
	Attempts int
	Base     time.Duration
	Growth   time.Duration
}

// DelayFor returns the wait before the given zero-based attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.Base + time.Duration(attempt)*p.Growth
}

// Retry runs fn up to p.Attempts times, sleeping DelayFor(attempt) before
// each attempt after the first. It stops early when fn succeeds or when
// retryable reports the error as permanent, and returns the last error.
func (p Policy) Retry(ctx context.Context, sleep Sleeper, retryable func(error) bool, fn func() error) error {
	if sleep == nil {
		sleep = Sleep
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.DelayFor(attempt)); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

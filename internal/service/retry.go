package service

import (
	"context"
	"errors"
	"time"
)

// transient is implemented by errors that may clear on retry (network
// failures, 5xx, throttling). Errors without the classification are treated
// as permanent and never retried.
type transient interface {
	Transient() bool
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// RetryPolicy is a bounded exponential backoff. NextDelay is a pure function
// of the attempt number so the policy is unit-testable without a transport.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// DefaultRetryPolicy matches the pipeline defaults: 3 attempts, 1s base, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: time.Second, Cap: 30 * time.Second}
}

// NextDelay returns the delay before the given retry attempt (1-based):
// Base doubled per attempt, capped at Cap.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(attempt-1)
	if p.Cap > 0 && (d > p.Cap || d <= 0) {
		d = p.Cap
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping NextDelay between attempts.
// Permanent errors abort immediately; context cancellation aborts the wait.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(p.NextDelay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Package base provides shared mechanics for backend operators: the retry
// policy, the bounded connection pool, extraction memoization, and
// database/sql result scanning.
package base

import (
	"context"
	"math"
	"time"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/errors"
)

// RetryPolicy defines bounded exponential backoff for transient failures.
// The policy is an explicit value; wrap an operation with Execute or
// ExecuteWithCondition rather than threading retry logic through call sites.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NewRetryPolicy creates a retry policy from settings.
func NewRetryPolicy(s config.RetrySettings) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  s.MaxAttempts,
		InitialDelay: s.InitialDelay,
		MaxDelay:     s.MaxDelay,
		Multiplier:   s.Multiplier,
	}
}

// DefaultRetryPolicy returns the production default policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Execute runs fn, retrying transient errors (per errors.IsTransient) with
// exponential backoff.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	return rp.ExecuteWithCondition(ctx, fn, errors.IsTransient)
}

// ExecuteWithCondition runs fn, retrying only while shouldRetry(err) holds.
// Non-retryable errors propagate immediately; when attempts are exhausted the
// last retryable error is returned as-is.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !shouldRetry(err) {
			return err
		}
		lastErr = err

		// Don't sleep after the last attempt
		if attempt == rp.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(rp.GetDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "retry cancelled")
		case <-timer.C:
		}
	}

	return lastErr
}

// GetDelay returns the backoff delay for a given zero-based attempt.
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}
	return time.Duration(delay)
}

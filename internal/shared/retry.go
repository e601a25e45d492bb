package shared

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of operations that fail on transient SQLite contention.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy is used when no configuration is supplied.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond}

// RetryOnConflict runs fn until it succeeds, returns a non-retryable error, or
// the attempts are exhausted. Delays double after every attempt.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op string, isRetryable func(error) bool, fn func() error) error {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}

	var err error
	for i := 0; i < policy.MaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || i == policy.MaxRetries-1 {
			return err
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		slog.Debug("Database contention, retrying",
			"op", op,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}

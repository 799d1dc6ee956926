package llm

import (
	"context"
	"time"
)

// RetryPolicy retries transient collaborator failures with exponential backoff
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// ShouldRetry decides whether an error is transient. Nil retries nothing.
	ShouldRetry func(error) bool
}

// DefaultRetryPolicy returns two retries starting at 500ms
func DefaultRetryPolicy(shouldRetry func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		BaseDelay:   500 * time.Millisecond,
		ShouldRetry: shouldRetry,
	}
}

// Retry runs fn until it succeeds, fails permanently, runs out of retries or ctx is done.
// The last error from fn is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	delay := policy.BaseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt >= policy.MaxRetries || policy.ShouldRetry == nil || !policy.ShouldRetry(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
	}
}

package pipeline

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures the single-retry-per-attempt behavior of
// one retry allowed, exponential backoff, only retryable
// error categories are retried.
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// backoffFor returns the delay before retry attempt n (1-indexed: the
// first retry is attempt 1).
func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.BackoffMultiplier
	}
	return time.Duration(delay)
}

// RunWithRetry invokes attempt, retrying up to p.MaxRetries times when the
// returned error is retryable per the taxonomy. Stages are not retried
// individually: attempt is expected to run the entire pipeline and
// discard any partial progress on failure.
func RunWithRetry(ctx context.Context, p RetryPolicy, attempt func(ctx context.Context, attemptNum int) error) error {
	var lastErr error
	for n := 0; n <= p.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = attempt(ctx, n+1)
		if lastErr == nil {
			return nil
		}

		var stageErr *StageError
		if !errors.As(lastErr, &stageErr) || !stageErr.Retryable() {
			return lastErr
		}
		if n == p.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoffFor(n + 1)):
		}
	}
	return lastErr
}

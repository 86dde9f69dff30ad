package api

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy controls retries of idempotent requests.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

type attemptFunc func(ctx context.Context, attempt int) error

func withRetry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn attemptFunc) error {
	normalized := normalizeRetryPolicy(policy)
	var lastErr error

	for attempt := 1; attempt <= normalized.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == normalized.MaxAttempts || !isRetryable(lastErr) {
			return lastErr
		}
		logger.Debug("api retry", "op", op, "attempt", attempt, "error", lastErr)

		wait := normalized.Backoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func normalizeRetryPolicy(policy RetryPolicy) RetryPolicy {
	out := policy
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 1
	}
	if out.Backoff < 0 {
		out.Backoff = 0
	}
	return out
}

func isRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return isTimeout(err)
}

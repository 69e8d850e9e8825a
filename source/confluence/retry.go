package confluence

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// retryWithBackoff retries an operation with exponential backoff. The base
// delay doubles on each retry. Failures wrapped with errPermanent are not
// retried. Returns the error from the last attempt if all attempts fail.
func retryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("request succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(lastErr, errPermanent) {
			return lastErr
		}

		slog.Debug("request failed, will retry",
			"attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		if attempt == maxAttempts {
			break
		}

		delay := baseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

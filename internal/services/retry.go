package services

import (
	"context"
	"log/slog"
	"time"
)

// RetryWithBackoff runs operation up to maxAttempts times. After failed attempt i (0-based)
// it waits baseDelay * 2^i before the next one. The last error is returned when every
// attempt fails; a cancelled context stops the loop with ctx.Err().
func RetryWithBackoff(ctx context.Context, operation func(ctx context.Context) error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	delay := baseDelay
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				slog.Debug("Operation succeeded after retry.", "attempt", attempt+1)
			}
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}

		slog.Warn("Operation failed, will retry.", "attempt", attempt+1, "maxAttempts", maxAttempts, "backoff", delay.String(), "error", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}

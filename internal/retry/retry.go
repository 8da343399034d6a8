// Package retry wraps remote calls with a rate-limit aware retry policy.
//
// Only rate-limit failures are retried, after the wait the provider asked for.
// Exhausting the attempts is not an error: the call degrades to an empty
// result so callers fall back to their "nothing" value.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vibesync/internal/result"
)

const (
	DefaultMaxAttempts = 3
	DefaultWait        = 5 * time.Second
)

// RateLimitError signals an HTTP 429-equivalent response.
// RetryAfter is zero when the provider did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Policy configures Do. The zero value is usable and means 3 attempts with a
// 5 second default wait.
type Policy struct {
	MaxAttempts int
	DefaultWait time.Duration
	// Sleep is replaced in tests. It must return early with an error when ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Do runs call until it succeeds, fails with a non rate-limit error, or the
// attempts are used up.
//
//   - success: result.OK
//   - rate limited on the last attempt: result.Empty
//   - any other error: result.Degraded, without retrying
func Do[T any](ctx context.Context, p Policy, name string, call func(ctx context.Context) (T, error)) result.Result[T] {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	defaultWait := p.DefaultWait
	if defaultWait <= 0 {
		defaultWait = DefaultWait
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := call(ctx)
		if err == nil {
			return result.OK(v)
		}

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return result.Degraded[T](err)
		}

		if attempt == maxAttempts {
			logger.Warn("Rate limit retries exhausted", "call", name, "attempts", maxAttempts)
			return result.Empty[T]()
		}

		wait := rl.RetryAfter
		if wait <= 0 {
			wait = defaultWait
		}
		logger.Warn("Rate limited, waiting before retry", "call", name, "attempt", attempt, "maxAttempts", maxAttempts, "wait", wait)

		if err := sleep(ctx, wait); err != nil {
			return result.Degraded[T](err)
		}
	}

	return result.Empty[T]()
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

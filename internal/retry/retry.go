package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Options controls the bounded exponential backoff behaviour.
type Options struct {
	// MaxRetries is the number of retries after the first attempt,
	// so a call makes at most MaxRetries+1 attempts.
	MaxRetries int
	// BaseDelay is the delay before the first retry; each subsequent
	// retry doubles it.
	BaseDelay time.Duration
	// Jitter adds up to 100% random slack on top of each delay.
	Jitter bool
}

// DefaultOptions matches the polling behaviour used against the core API
// when a just-created resource is expected to eventually appear.
var DefaultOptions = Options{
	MaxRetries: 5,
	BaseDelay:  time.Second,
}

// Do invokes fn until it returns a result the caller accepts.
//
// retryWhile is evaluated on every successful result; a true return means
// "the result is not usable yet, keep retrying" (for example a nil user
// record right after account creation). A nil retryWhile accepts the first
// successful result. Errors are retried until MaxRetries is exhausted, then
// the last error is returned. When the retry budget runs out with an
// unsatisfactory result, the last result is returned as-is.
func Do[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error), retryWhile func(T) bool) (T, error) {
	var zero T
	if opts.MaxRetries < 0 {
		return zero, fmt.Errorf("retry: MaxRetries must be non-negative")
	}
	if opts.BaseDelay <= 0 {
		return zero, fmt.Errorf("retry: BaseDelay must be positive")
	}

	var lastErr error
	var lastResult T

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if retryWhile == nil || !retryWhile(result) {
				return result, nil
			}
			lastResult = result
			lastErr = nil
			if attempt == opts.MaxRetries {
				slog.Warn("retry budget exhausted with unsatisfactory result",
					"attempts", attempt+1)
				return lastResult, nil
			}
		} else {
			lastErr = err
			if attempt == opts.MaxRetries {
				return zero, fmt.Errorf("retry: %d attempts failed: %w", attempt+1, lastErr)
			}
		}

		delay := opts.BaseDelay << attempt
		if opts.Jitter {
			delay += time.Duration(rand.Int63n(int64(delay)))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Unreachable: the loop always returns from its final iteration.
	return zero, lastErr
}

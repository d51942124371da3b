// Package retry wraps producers whose failures are frequently caused by a
// stale cached intermediate (a dead cookie, an outdated bootstrap script,
// a moved navigation link). Between attempts it clears the declared
// invalidation set so the next attempt recomputes fresh inputs instead of
// retrying against known-bad state.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Yubo-Cao/grade-dashboard/lib/cache"
)

type Options struct {
	// MaxAttempts is the total number of attempts, not the number of
	// retries after the first failure. Values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// Invalidates is cleared after every failed non-final attempt. By
	// convention the producer's own cache is listed first, followed by
	// everything computed downstream from it.
	Invalidates []cache.Clearable
}

// Do runs fn up to opts.MaxAttempts times. The error of the final attempt
// is returned unwrapped so callers can still match sentinel errors.
func Do[V any](ctx context.Context, opts Options, name string, fn func(ctx context.Context) (V, error)) (V, error) {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero V
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		slog.WarnContext(
			ctx, "retrying",
			"op", name,
			"attempt", i+1,
			"delay", opts.Delay,
			"err", err,
		)
		for _, dep := range opts.Invalidates {
			dep.Clear()
		}

		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	slog.ErrorContext(ctx, "all attempts failed", "op", name, "attempts", attempts, "err", lastErr)
	return zero, lastErr
}

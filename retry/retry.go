// Package retry provides exponential backoff with jitter, error-class-based
// retry eligibility, and a minimum-interval rate limiter.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Options controls retry behavior. Zero values fall back to defaults.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	if o.JitterFactor < 0 {
		o.JitterFactor = 0.1
	}
	return o
}

// BackoffDelay computes the delay before retrying after the given 0-indexed
// attempt: min(initial * multiplier^attempt, max), jittered by a uniform
// +/- JitterFactor fraction, floored at zero and rounded to the nearest
// millisecond.
func BackoffDelay(attempt int, opts Options) time.Duration {
	o := opts.withDefaults()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(o.InitialDelay) * math.Pow(o.Multiplier, float64(attempt))
	if cap := float64(o.MaxDelay); delay > cap {
		delay = cap
	}

	jitter := (rand.Float64()*2 - 1) * o.JitterFactor * delay
	delay += jitter
	if delay < 0 {
		delay = 0
	}

	ms := math.Round(delay / float64(time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// Do invokes fn up to MaxAttempts times. Non-retryable failures propagate
// immediately without consuming remaining attempts. Between attempts it
// sleeps for a server-supplied retry-after delay when one is present, else
// for the computed exponential backoff. logAttrs are appended to every
// attempt log line.
func Do[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error), logAttrs ...any) (T, error) {
	o := opts.withDefaults()
	var zero T
	var lastErr error

	for attempt := 0; attempt < o.MaxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("retry succeeded",
					append([]any{slog.Int("attempt", attempt+1)}, logAttrs...)...)
			}
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			slog.Warn("non-retryable failure",
				append([]any{slog.Int("attempt", attempt + 1), slog.Any("error", err)}, logAttrs...)...)
			return zero, err
		}
		if attempt == o.MaxAttempts-1 {
			break
		}

		delay, ok := RetryAfterDelay(err)
		if !ok {
			delay = BackoffDelay(attempt, o)
		}
		slog.Warn("retrying after failure",
			append([]any{
				slog.Int("attempt", attempt + 1),
				slog.Int("max_attempts", o.MaxAttempts),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			}, logAttrs...)...)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	slog.Error("retries exhausted",
		append([]any{slog.Int("attempts", o.MaxAttempts), slog.Any("error", lastErr)}, logAttrs...)...)
	return zero, lastErr
}

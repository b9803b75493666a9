package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/curately/pricesync/apierr"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	opts := Options{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		JitterFactor: 0, // deterministic
	}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, want := range expected {
		if got := BackoffDelay(attempt, opts); got != want {
			t.Errorf("BackoffDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	opts := Options{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}

	upper := time.Duration(float64(opts.MaxDelay) * 1.1)
	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 50; i++ {
			got := BackoffDelay(attempt, opts)
			if got < 0 {
				t.Fatalf("BackoffDelay(%d) = %v, below zero", attempt, got)
			}
			if got > upper {
				t.Fatalf("BackoffDelay(%d) = %v, above max*(1+jitter) bound %v", attempt, got, upper)
			}
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "typed rate limit", err: apierr.RateLimit("slow down", 0), expected: true},
		{name: "typed authentication", err: apierr.Authentication("rejected", ""), expected: false},
		{name: "typed not found", err: apierr.NotFound("missing", ""), expected: false},
		{name: "typed retryable flag honored", err: apierr.Retryable("transient", nil), expected: true},
		{
			name:     "typed retryable flag cleared",
			err:      &apierr.Error{Kind: apierr.KindRetryable, Message: "pinned", Retryable: false},
			expected: false,
		},
		{name: "typed fatal", err: apierr.Fatal("broken", "", nil), expected: false},
		{name: "wrapped typed rate limit", err: fmt.Errorf("batch 2: %w", apierr.RateLimit("slow down", 0)), expected: true},
		{name: "message network", err: errors.New("network unreachable"), expected: true},
		{name: "message timeout", err: errors.New("request timed out"), expected: true},
		{name: "message connection reset", err: errors.New("read: connection reset by peer"), expected: true},
		{name: "message 429", err: errors.New("upstream returned 429"), expected: true},
		{name: "message 503", err: errors.New("http status 503"), expected: true},
		{name: "message gateway timeout", err: errors.New("gateway timeout from edge"), expected: true},
		{name: "message 401", err: errors.New("http status 401"), expected: false},
		{name: "message authentication failed", err: errors.New("authentication failed for key"), expected: false},
		{name: "message not found", err: errors.New("item not found"), expected: false},
		{name: "unclassified", err: errors.New("something odd happened"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryAfterDelay(t *testing.T) {
	if d, ok := RetryAfterDelay(apierr.RateLimit("throttled", 5*time.Second)); !ok || d != 5*time.Second {
		t.Fatalf("typed delay = %v/%v, want 5s/true", d, ok)
	}
	if d, ok := RetryAfterDelay(errors.New("throttled, retry after 7")); !ok || d != 7*time.Second {
		t.Fatalf("scraped delay = %v/%v, want 7s/true", d, ok)
	}
	if _, ok := RetryAfterDelay(errors.New("throttled")); ok {
		t.Fatalf("expected no delay for bare message")
	}
	if _, ok := RetryAfterDelay(nil); ok {
		t.Fatalf("expected no delay for nil")
	}
}

func fastOpts() Options {
	return Options{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		JitterFactor: 0,
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), fastOpts(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", apierr.RateLimit("throttled", 0)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q, want ok", out)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastOpts(), func(context.Context) (int, error) {
		calls++
		return 0, apierr.Authentication("rejected", "")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	failure := apierr.RateLimit("still throttled", 0)
	_, err := Do(context.Background(), fastOpts(), func(context.Context) (int, error) {
		calls++
		return 0, failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("err = %v, want last failure", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOpts()
	opts.InitialDelay = time.Hour
	opts.MaxDelay = time.Hour

	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Do(ctx, opts, func(context.Context) (int, error) {
			calls++
			return 0, apierr.RateLimit("throttled", 0)
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRateLimiterEnforcesSpacing(t *testing.T) {
	limiter := NewRateLimiter(10) // 100ms between calls

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Fatalf("3 calls took %v, want >= ~180ms", elapsed)
	}
}

func TestRateLimiterResetRemovesDelay(t *testing.T) {
	limiter := NewRateLimiter(1) // 1s between calls

	if err := limiter.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("execute: %v", err)
	}
	limiter.Reset()

	start := time.Now()
	if err := limiter.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("call after reset took %v, want unthrottled", elapsed)
	}
}

func TestRateLimiterContextCancelledWhileWaiting(t *testing.T) {
	limiter := NewRateLimiter(0.5) // 2s between calls
	if err := limiter.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiter.Execute(ctx, func() error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

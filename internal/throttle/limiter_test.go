package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(clock *fakeClock) *Limiter {
	return New(Options{
		TPMLimit:     1000,
		RPMLimit:     10,
		SafetyMargin: 1,
		MaxRetries:   2,
		BaseDelay:    time.Millisecond,
		Clock:        clock,
	})
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want time.Duration
		ok   bool
	}{
		{"Rate limit reached. Please try again in 552ms.", 552 * time.Millisecond, true},
		{"Rate limit reached. Please try again in 30s.", 30 * time.Second, true},
		{"Rate limit reached. Please try again in 1m30s.", 90 * time.Second, true},
		{"rate limit reached, please try again in 5s", 5 * time.Second, true},
		{"some other failure", 0, false},
	}
	for _, tc := range cases {
		got, ok := RetryAfter(errors.New(tc.msg))
		require.Equal(t, tc.ok, ok, tc.msg)
		require.Equal(t, tc.want, got, tc.msg)
	}
	_, ok := RetryAfter(nil)
	require.False(t, ok)
}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	require.True(t, IsRateLimited(errors.New("Rate limit reached for gpt-4o")))
	require.True(t, IsRateLimited(errors.New("error code 429 too many requests")))
	require.True(t, IsRateLimited(errors.New("rate_limit_exceeded")))
	require.False(t, IsRateLimited(errors.New("connection refused")))
	require.False(t, IsRateLimited(nil))
}

func TestDelayStaysAtBaseUnderBudget(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	l.Record(100)
	require.Equal(t, time.Millisecond, l.Delay(100))
}

func TestDelayGrowsWhenTokenBudgetExceeded(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	l.Record(900)
	// 900 used + 600 estimated = 500 over a 1000 budget: wait
	// half the window.
	require.Equal(t, 30*time.Second, l.Delay(600))
}

func TestDelayGrowsWhenRequestBudgetExceeded(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	for i := 0; i < 10; i++ {
		l.Record(1)
	}
	// 11th request against a budget of 10: one-tenth of the window.
	require.Equal(t, 6*time.Second, l.Delay(1))
}

func TestWindowSlidesAfterOneMinute(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	l.Record(900)

	clock.now = clock.now.Add(61 * time.Second)
	require.Equal(t, time.Millisecond, l.Delay(600))

	stats := l.Stats()
	require.Zero(t, stats.TokensUsed)
	require.Zero(t, stats.RequestsUsed)
}

func TestSafetyMarginShrinksLimits(t *testing.T) {
	t.Parallel()

	l := New(Options{TPMLimit: 1000, RPMLimit: 100, SafetyMargin: 0.8, BaseDelay: time.Millisecond})
	stats := l.Stats()
	require.Equal(t, 800, stats.TPMLimit)
	require.Equal(t, 80, stats.RPMLimit)
}

func TestDoRetriesRateLimitErrors(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)

	calls := 0
	err := l.Do(context.Background(), 10, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("rate limit reached. Please try again in 1ms.")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 1, l.Stats().RequestsUsed)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)

	calls := 0
	err := l.Do(context.Background(), 10, func(context.Context) error {
		calls++
		return errors.New("rate limit reached. Please try again in 1ms.")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, 3, calls)
}

func TestDoPropagatesOtherErrorsImmediately(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)

	calls := 0
	sentinel := errors.New("model unavailable")
	err := l.Do(context.Background(), 10, func(context.Context) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(clock)
	l.Record(1000)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// The token budget is saturated, so Wait would block for most of
	// the window; cancellation must cut it short.
	err := l.Do(ctx, 1000, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

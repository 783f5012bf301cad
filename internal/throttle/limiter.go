// Package throttle keeps AI completion calls inside provider rate
// limits. It tracks a sliding one-minute window of token and request
// usage, delays callers before they would breach a budget, and retries
// calls that hit the provider's limiter anyway.
package throttle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// Defaults mirror typical completion-API budgets with headroom for
// other consumers of the same key.
const (
	DefaultTPMLimit     = 200000
	DefaultRPMLimit     = 1000
	DefaultSafetyMargin = 0.8
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = time.Second
)

// Options configures a Limiter.
type Options struct {
	TPMLimit     int
	RPMLimit     int
	SafetyMargin float64
	MaxRetries   int
	BaseDelay    time.Duration
	Clock        audit.Clock
	Logger       *zap.Logger
}

type record struct {
	at     time.Time
	tokens int
}

// Limiter is a sliding-window token and request budget.
type Limiter struct {
	tpmLimit   int
	rpmLimit   int
	maxRetries int
	baseDelay  time.Duration
	clock      audit.Clock
	log        *zap.Logger

	mu     sync.Mutex
	window []record
}

// Stats is a point-in-time view of limiter usage.
type Stats struct {
	TokensUsed        int `json:"current_tpm_usage"`
	RequestsUsed      int `json:"current_rpm_usage"`
	TPMLimit          int `json:"tpm_limit"`
	RPMLimit          int `json:"rpm_limit"`
	TokensRemaining   int `json:"tpm_remaining"`
	RequestsRemaining int `json:"rpm_remaining"`
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// New builds a Limiter. The safety margin shrinks both budgets so
// bursts right at the window edge do not trip the provider.
func New(opts Options) *Limiter {
	if opts.TPMLimit <= 0 {
		opts.TPMLimit = DefaultTPMLimit
	}
	if opts.RPMLimit <= 0 {
		opts.RPMLimit = DefaultRPMLimit
	}
	if opts.SafetyMargin <= 0 || opts.SafetyMargin > 1 {
		opts.SafetyMargin = DefaultSafetyMargin
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Limiter{
		tpmLimit:   int(float64(opts.TPMLimit) * opts.SafetyMargin),
		rpmLimit:   int(float64(opts.RPMLimit) * opts.SafetyMargin),
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
}

// usage sums the window after pruning records older than a minute.
// Callers hold l.mu.
func (l *Limiter) usage(now time.Time) (tokens, requests int) {
	cutoff := now.Add(-time.Minute)
	kept := l.window[:0]
	for _, r := range l.window {
		if r.at.After(cutoff) {
			kept = append(kept, r)
			tokens += r.tokens
		}
	}
	l.window = kept
	return tokens, len(l.window)
}

// Delay reports how long a caller should wait before spending
// estimatedTokens. It never returns less than the base delay.
func (l *Limiter) Delay(estimatedTokens int) time.Duration {
	l.mu.Lock()
	tokens, requests := l.usage(l.clock.Now())
	l.mu.Unlock()

	delay := l.baseDelay
	if over := tokens + estimatedTokens - l.tpmLimit; over > 0 {
		if d := time.Duration(float64(over) / float64(l.tpmLimit) * float64(time.Minute)); d > delay {
			delay = d
		}
	}
	if over := requests + 1 - l.rpmLimit; over > 0 {
		if d := time.Duration(float64(over) / float64(l.rpmLimit) * float64(time.Minute)); d > delay {
			delay = d
		}
	}
	return delay
}

// Wait blocks for the computed delay or until ctx is done.
func (l *Limiter) Wait(ctx context.Context, estimatedTokens int) error {
	delay := l.Delay(estimatedTokens)
	if delay > l.baseDelay {
		l.log.Info("throttling before request", zap.Duration("delay", delay))
	}
	return sleep(ctx, delay)
}

// Record books a completed request against the window.
func (l *Limiter) Record(tokensUsed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = append(l.window, record{at: l.clock.Now(), tokens: tokensUsed})
}

// Stats returns current window usage against the effective limits.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	tokens, requests := l.usage(l.clock.Now())
	l.mu.Unlock()

	s := Stats{
		TokensUsed:   tokens,
		RequestsUsed: requests,
		TPMLimit:     l.tpmLimit,
		RPMLimit:     l.rpmLimit,
	}
	if s.TokensRemaining = l.tpmLimit - tokens; s.TokensRemaining < 0 {
		s.TokensRemaining = 0
	}
	if s.RequestsRemaining = l.rpmLimit - requests; s.RequestsRemaining < 0 {
		s.RequestsRemaining = 0
	}
	return s
}

// Do runs fn under the limiter, retrying provider rate-limit errors up
// to MaxRetries times. Other errors return immediately.
func (l *Limiter) Do(ctx context.Context, estimatedTokens int, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := l.Wait(ctx, estimatedTokens); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			l.Record(estimatedTokens)
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}
		lastErr = err

		if attempt == l.maxRetries {
			break
		}
		wait, ok := RetryAfter(err)
		if !ok {
			wait = l.Delay(estimatedTokens)
		}
		l.log.Warn("provider rate limit hit",
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", l.maxRetries+1))
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("rate limited after %d attempts: %w", l.maxRetries+1, lastErr)
}

// IsRateLimited reports whether err looks like a provider rate-limit
// rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429")
}

// Provider messages look like "Please try again in 552ms" or
// "Please try again in 1m30s".
var (
	retryMillisRE = regexp.MustCompile(`(?i)please try again in (\d+)ms`)
	retryMinSecRE = regexp.MustCompile(`(?i)please try again in (\d+)m(\d+)s`)
	retrySecsRE   = regexp.MustCompile(`(?i)please try again in (\d+)s`)
)

// RetryAfter extracts the provider-suggested wait from a rate-limit
// error message.
func RetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	msg := err.Error()
	if m := retryMillisRE.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * time.Millisecond, true
	}
	if m := retryMinSecRE.FindStringSubmatch(msg); m != nil {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second, true
	}
	if m := retrySecsRE.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

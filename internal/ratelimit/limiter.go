// Package ratelimit implements the sliding-window admission control that
// guards every LLM call: a rolling requests-per-minute budget and a rolling
// tokens-per-minute budget, plus a retry helper for classifying and
// re-attempting failed calls.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/codevalley/robo-worker/internal/clock"
	"golang.org/x/time/rate"
)

const window = 60 * time.Second

// Config configures both budgets and the retry helper's backoff schedule.
type Config struct {
	RequestsPerMinute int
	TokensPerMinute   int
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            float64
}

// Limiter enforces requests_per_minute via golang.org/x/time/rate (which
// admits but cannot retroactively debit) composed with a hand-rolled
// sliding token window, since record_usage's post-hoc actual-token
// accounting has no equivalent in rate.Limiter.
type Limiter struct {
	cfg     Config
	clk     clock.Clock
	reqLim  *rate.Limiter
	mu      sync.Mutex
	tokens  []tokenEntry
	sleepFn func(time.Duration)
}

type tokenEntry struct {
	at     time.Time
	tokens int
}

// New builds a Limiter. clk lets tests control the passage of time
// without sleeping.
func New(cfg Config, clk clock.Clock) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.TokensPerMinute <= 0 {
		cfg.TokensPerMinute = 100000
	}
	return &Limiter{
		cfg:     cfg,
		clk:     clk,
		reqLim:  rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute),
		sleepFn: time.Sleep,
	}
}

// WaitForCapacity blocks until admitting one more request and
// estimatedTokens more tokens would not breach either rolling budget. It
// never overshoots: the admission decision is made only after every sleep.
func (l *Limiter) WaitForCapacity(ctx context.Context, estimatedTokens int) error {
	for {
		l.pruneTokens()

		l.mu.Lock()
		used := 0
		for _, e := range l.tokens {
			used += e.tokens
		}
		room := l.cfg.TokensPerMinute - used - estimatedTokens
		l.mu.Unlock()

		if room >= 0 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return l.reqLim.Wait(ctx)
}

// RecordUsage appends a token entry to the rolling token window. Must be
// called after every LLM call attempt, successful or not, with the actual
// token count when known, else the estimate.
func (l *Limiter) RecordUsage(actualTokens int, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, tokenEntry{at: at, tokens: actualTokens})
}

func (l *Limiter) pruneTokens() {
	cutoff := l.clk.Now().Add(-window)
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.tokens[:0]
	for _, e := range l.tokens {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	l.tokens = kept
}

// ErrClassifier reports whether err is retryable.
type ErrClassifier func(err error) (retryable bool)

// WithRetry invokes fn, retrying on retryable errors with exponential
// backoff: base 2s, factor 2, jitter +-20%, capped at 60s, bounded by
// max_retries. Non-retryable errors return immediately.
func (l *Limiter) WithRetry(ctx context.Context, classify ErrClassifier, fn func() error) error {
	base := l.cfg.BaseDelay
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := l.cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	jitter := l.cfg.Jitter
	if jitter <= 0 {
		jitter = 0.2
	}
	maxRetries := l.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	delay := base
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr) {
			return lastErr
		}
		if attempt == maxRetries {
			break
		}

		sleep := withJitter(delay, jitter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-afterFn(l.sleepFn, sleep):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return fmt.Errorf("ratelimit: retries exhausted: %w", lastErr)
}

func withJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	offset := (rand.Float64()*2 - 1) * delta
	out := time.Duration(float64(d) + offset)
	if out < 0 {
		return 0
	}
	return out
}

// afterFn runs sleepFn in a goroutine so WithRetry can stop waiting when
// ctx is canceled. New always sets sleepFn to time.Sleep, so backoff
// delays are real sleeps.
func afterFn(sleepFn func(time.Duration), d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		sleepFn(d)
		ch <- time.Now()
	}()
	return ch
}

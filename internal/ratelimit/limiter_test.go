package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codevalley/robo-worker/internal/clock"
	"github.com/codevalley/robo-worker/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForCapacity_AdmitsWithinBudget(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	lim := ratelimit.New(ratelimit.Config{RequestsPerMinute: 50, TokensPerMinute: 1000}, clk)

	err := lim.WaitForCapacity(context.Background(), 100)
	assert.NoError(t, err)
	lim.RecordUsage(100, clk.Now())
}

func TestWaitForCapacity_PrunesExpiredEntries(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	lim := ratelimit.New(ratelimit.Config{RequestsPerMinute: 50, TokensPerMinute: 100}, clk)

	lim.RecordUsage(90, clk.Now())
	clk.Advance(61 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := lim.WaitForCapacity(ctx, 50)
	assert.NoError(t, err, "expired token usage must not count against the budget")
}

func TestWithRetry_StopsOnNonRetryableError(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	lim := ratelimit.New(ratelimit.Config{MaxRetries: 3, BaseDelay: time.Millisecond}, clk)

	calls := 0
	err := lim.WithRetry(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return errors.New("permanent")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesRetryableErrorUntilSuccess(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	lim := ratelimit.New(ratelimit.Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, clk)

	calls := 0
	err := lim.WithRetry(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAfterMaxRetries(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	lim := ratelimit.New(ratelimit.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, clk)

	calls := 0
	err := lim.WithRetry(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return errors.New("still failing")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateRetryDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, time.Minute},
		{10, time.Minute},
		{500, time.Minute},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CalculateRetryDelay(tc.attempt, cfg), "attempt %d", tc.attempt)
	}
}

func TestCalculateRetryDelayNonDecreasingAndBounded(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 250 * time.Millisecond, MaxDelay: 45 * time.Second}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 80; attempt++ {
		d := CalculateRetryDelay(attempt, cfg)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, cfg.MaxDelay)
		prev = d
	}
}

func TestCalculateRetryDelayWithoutCap(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second}
	assert.Equal(t, 8*time.Second, CalculateRetryDelay(4, cfg))
	assert.Positive(t, CalculateRetryDelay(200, cfg))
}

func TestBuildRetryUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := RetryConfig{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

	first := BuildRetryUpdate(RetryInput{CurrentAttemptCount: 0, MaxAttempts: 3, Now: now, RetryConfig: cfg})
	assert.Equal(t, 1, first.AttemptCount)
	assert.False(t, first.Exhausted)
	assert.Equal(t, 2*time.Second, first.Delay)
	assert.Equal(t, now.Add(2*time.Second), first.NextRetryAt)

	second := BuildRetryUpdate(RetryInput{CurrentAttemptCount: 1, MaxAttempts: 3, Now: now, RetryConfig: cfg})
	assert.Equal(t, 2, second.AttemptCount)
	assert.Equal(t, 4*time.Second, second.Delay)
	assert.False(t, second.Exhausted)

	last := BuildRetryUpdate(RetryInput{CurrentAttemptCount: 2, MaxAttempts: 3, Now: now, RetryConfig: cfg})
	assert.Equal(t, 3, last.AttemptCount)
	assert.True(t, last.Exhausted)

	past := BuildRetryUpdate(RetryInput{CurrentAttemptCount: 7, MaxAttempts: 3, Now: now, RetryConfig: cfg})
	assert.Equal(t, 8, past.AttemptCount)
	assert.True(t, past.Exhausted)
	assert.Equal(t, 30*time.Second, past.Delay)
}

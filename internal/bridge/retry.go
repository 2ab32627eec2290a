// Package bridge holds the retry schedule and the idempotency registry shared
// by outbound ticket delivery and inbound callback handling.
package bridge

import (
	"time"

	"incident-pipeline/internal/models"
)

// RetryConfig bounds the exponential backoff.
type RetryConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// CalculateRetryDelay returns min(MaxDelay, BaseDelay * 2^(nextAttempt-1)).
// nextAttempt is 1-indexed; values below 1 are treated as 1. No jitter.
func CalculateRetryDelay(nextAttempt int, cfg RetryConfig) time.Duration {
	if cfg.BaseDelay <= 0 {
		return 0
	}
	exp := nextAttempt - 1
	if exp < 0 {
		exp = 0
	}
	delay := cfg.BaseDelay
	for i := 0; i < exp; i++ {
		if (cfg.MaxDelay > 0 && delay >= cfg.MaxDelay) || delay > (1<<62)/2 {
			break
		}
		delay *= 2
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

// RetryInput describes the attempt that just failed.
type RetryInput struct {
	CurrentAttemptCount int
	MaxAttempts         int
	Now                 time.Time
	RetryConfig
}

// BuildRetryUpdate counts the failed attempt and schedules the next one.
// Exhaustion is reported, never enforced: the caller decides whether to stop.
func BuildRetryUpdate(in RetryInput) models.RetryState {
	attempt := in.CurrentAttemptCount + 1
	delay := CalculateRetryDelay(attempt, in.RetryConfig)
	return models.RetryState{
		AttemptCount: attempt,
		Exhausted:    attempt >= in.MaxAttempts,
		Delay:        delay,
		NextRetryAt:  in.Now.Add(delay),
	}
}

package utils

import (
	"context"
	"log"
	"math/rand"
	"time"
)

const (
	backoffBase   = 30 * time.Second
	backoffCap    = 30 * time.Minute
	backoffJitter = 0.2
)

// BackoffDelay returns the wait before retry number attempt (0-based):
// exponential from a 30s base, capped at 30min, with ±20% jitter.
func BackoffDelay(attempt int) time.Duration {
	return backoffDelay(attempt, backoffBase)
}

func backoffDelay(attempt int, base time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			d = backoffCap
			break
		}
	}
	// jitter in [-20%, +20%]
	jitter := 1 + backoffJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// WithRetry runs op, retrying transient failures with exponential backoff
// until it succeeds, hits a permanent error, exhausts maxAttempts, or the
// context is cancelled. Orchestration decisions must only be persisted
// after op reports success, so a partial failure never mutates state.
// The 30s base suits background work; request paths use WithRetryBase and
// a sub-second base.
func WithRetry(ctx context.Context, maxAttempts int, logger *log.Logger, op func() error) error {
	return WithRetryBase(ctx, maxAttempts, backoffBase, logger, op)
}

// WithRetryBase is WithRetry with a caller-chosen first delay.
func WithRetryBase(ctx context.Context, maxAttempts int, base time.Duration, logger *log.Logger, op func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		delay := backoffDelay(attempt, base)
		if logger != nil {
			logger.Printf("transient failure (attempt %d/%d), retrying in %s: %v",
				attempt+1, maxAttempts, delay.Round(time.Second), err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

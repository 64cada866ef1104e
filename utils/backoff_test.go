package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailwarm/store"
)

func TestBackoffDelayBounds(t *testing.T) {
	expected := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		960 * time.Second,
		30 * time.Minute,
		30 * time.Minute,
	}
	for attempt, base := range expected {
		d := BackoffDelay(attempt)
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		if d < lo || d > hi {
			t.Errorf("attempt %d: delay %s outside [%s, %s]", attempt, d, lo, hi)
		}
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, testLogger(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 5, testLogger(), func() error {
		calls++
		return ErrEnrollmentNotFound
	})
	if !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not retry, got %d calls", calls)
	}
}

func TestWithRetryHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, 3, testLogger(), func() error {
		return errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
	if IsTransient(ErrQuotaExceeded) {
		t.Fatal("quota exhaustion is an expected outcome, not transient")
	}
	if IsTransient(ErrInvalidEnrollmentState) {
		t.Fatal("lifecycle rejections are permanent")
	}
	if IsTransient(store.ErrConflict) {
		t.Fatal("uniqueness conflicts never heal on retry")
	}
	if IsTransient(context.Canceled) {
		t.Fatal("cancelled work must not be retried")
	}
	if !IsTransient(errors.New("dial tcp: i/o timeout")) {
		t.Fatal("unknown dependency errors should be retried")
	}
}

func TestWithRetryConflictFailsFast(t *testing.T) {
	calls := 0
	start := time.Now()
	err := WithRetry(context.Background(), 3, testLogger(), func() error {
		calls++
		return store.ErrConflict
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("conflicts must not retry, got %d calls", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("conflict return took %s", elapsed)
	}
}

func TestWithRetryBaseRetriesTransient(t *testing.T) {
	calls := 0
	err := WithRetryBase(context.Background(), 3, time.Millisecond, testLogger(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

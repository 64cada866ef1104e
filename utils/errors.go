package utils

import (
	"context"
	"errors"

	"mailwarm/store"
)

var (
	// ErrQuotaExceeded means the day's budget is spent. It is an expected
	// outcome, not a failure; callers defer the send.
	ErrQuotaExceeded = errors.New("daily send quota exceeded")

	// ErrInvalidEnrollmentState rejects control actions that the
	// enrollment lifecycle does not allow, e.g. resuming a completed
	// warmup. Surfaced to API callers as a 409.
	ErrInvalidEnrollmentState = errors.New("invalid enrollment state for requested action")

	// ErrEnrollmentNotFound and ErrSenderNotFound identify the missing
	// record behind a store.ErrNotFound.
	ErrEnrollmentNotFound = errors.New("warmup enrollment not found")
	ErrSenderNotFound     = errors.New("sender identity not found")

	// ErrSenderDisabled blocks enrollment of soft-disabled senders.
	ErrSenderDisabled = errors.New("sender is disabled")
)

// IsTransient reports whether err is worth retrying with backoff.
// Missing records, uniqueness conflicts, cancelled contexts and rejected
// state transitions are permanent; anything else coming back from a
// dependency (timeouts, connection errors) is assumed transient.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrInvalidEnrollmentState),
		errors.Is(err, ErrEnrollmentNotFound),
		errors.Is(err, ErrSenderNotFound),
		errors.Is(err, ErrSenderDisabled):
		return false
	}
	return true
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mailwarm/store"
)

// Bound names which ceiling decided a reservation, for observability.
type Bound string

const (
	BoundWarmupTarget  Bound = "warmup_target"
	BoundCampaignLimit Bound = "campaign_daily_limit"
)

// Reservation is a granted send slot.
type Reservation struct {
	CampaignID  uint   `json:"campaign_id"`
	SenderEmail string `json:"sender_email"`
	// BoundBy reports the ceiling that was closest when reserving.
	BoundBy Bound `json:"bound_by"`
	// Remaining is the slots left after this reservation, best-effort.
	Remaining int `json:"remaining"`
}

// QuotaExceededError wraps ErrQuotaExceeded with the bound that closed
// the quota, so callers can tell "warmed up for today" from "campaign cap
// reached".
type QuotaExceededError struct {
	BoundBy Bound
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily send quota exceeded (%s)", e.BoundBy)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// QuotaEnforcer gatekeeps outbound warmup sends. TryReserve is the only
// hot path in the engine and must stay a single atomic operation per
// call; many send workers hit it concurrently for the same sender.
type QuotaEnforcer struct {
	Store  store.Store
	Logger *log.Logger
}

func NewQuotaEnforcer(st store.Store, logger *log.Logger) *QuotaEnforcer {
	return &QuotaEnforcer{Store: st, Logger: logger}
}

// TryReserve grants one send slot for the enrollment or reports
// QuotaExceededError. The effective ceiling is
// min(enrollment.daily_target, campaign.daily_limit - campaign sends so
// far today); the pause check rides inside the same conditional update as
// the counter bound, so pausing takes effect before the next reservation
// with no check-then-act race.
//
// Reservations are not refunded when the downstream send fails: the slot
// still consumed sending capacity for the day. Failed sends are reported
// through the engagement ingest instead.
func (q *QuotaEnforcer) TryReserve(ctx context.Context, campaignID uint, senderEmail string) (*Reservation, error) {
	e, err := q.Store.GetEnrollment(ctx, campaignID, senderEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("loading enrollment: %w", err)
	}

	limit := e.DailyTarget
	boundBy := BoundWarmupTarget
	if campaign, err := q.Store.GetCampaign(ctx, campaignID); err == nil && campaign.DailyLimit > 0 {
		headroom := campaign.DailyLimit - campaign.SentToday
		if headroom < limit {
			limit = headroom
			boundBy = BoundCampaignLimit
		}
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading campaign: %w", err)
	}

	if limit <= 0 {
		return nil, &QuotaExceededError{BoundBy: boundBy}
	}

	reserved, err := q.Store.ReserveSend(ctx, campaignID, senderEmail, limit)
	if err != nil {
		return nil, fmt.Errorf("reserving send: %w", err)
	}
	if !reserved {
		return nil, &QuotaExceededError{BoundBy: boundBy}
	}

	remaining := limit - (e.EmailsSentToday + 1)
	if remaining < 0 {
		remaining = 0
	}
	return &Reservation{
		CampaignID:  campaignID,
		SenderEmail: senderEmail,
		BoundBy:     boundBy,
		Remaining:   remaining,
	}, nil
}

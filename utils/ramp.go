package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"mailwarm/models"
	"mailwarm/store"
)

// PhasePolicy describes one ramp stage: its daily-target formula
// (min(Base + PerDay*day, ceiling)), the day budget, and the health score
// required to advance out of it.
type PhasePolicy struct {
	Base    int
	PerDay  int
	Ceiling int // 0 means the sender's daily send cap is the ceiling
	MaxDays int

	// AdvanceScore is the minimum health score to leave the phase. For
	// Scale-Up the enrollment's target score is used instead and meeting
	// it completes the warmup.
	AdvanceScore int
}

// DailyTarget computes the quota for the given day in phase, never
// exceeding the sender's hard cap.
func (p PhasePolicy) DailyTarget(dayInPhase, sendCap int) int {
	if dayInPhase < 1 {
		dayInPhase = 1
	}
	if dayInPhase > p.MaxDays {
		dayInPhase = p.MaxDays
	}
	target := p.Base + p.PerDay*dayInPhase
	if p.Ceiling > 0 && target > p.Ceiling {
		target = p.Ceiling
	}
	if sendCap > 0 && target > sendCap {
		target = sendCap
	}
	return target
}

// DefaultPhasePolicies is the stock 35-day ramp behind the warming
// dashboard: Foundation 1-7, Engagement 8-21, Scale-Up 22-35.
var DefaultPhasePolicies = map[models.WarmupPhase]PhasePolicy{
	models.PhaseFoundation: {Base: 5, PerDay: 2, Ceiling: 20, MaxDays: 7, AdvanceScore: 50},
	models.PhaseEngagement: {Base: 20, PerDay: 5, Ceiling: 80, MaxDays: 14, AdvanceScore: 75},
	models.PhaseScaleUp:    {Base: 80, PerDay: 10, Ceiling: 0, MaxDays: 14},
}

// InitialDailyTarget is the quota a freshly created enrollment starts at
// (Foundation, day 1).
func InitialDailyTarget(sendCap int) int {
	return DefaultPhasePolicies[models.PhaseFoundation].DailyTarget(1, sendCap)
}

// NextRampState applies one daily transition to a copy of e and returns
// it. The rule, evaluated once per sender-local day:
//   - Scale-Up completes as soon as the health score reaches the
//     enrollment's target.
//   - Otherwise the phase advances only when both the day budget is
//     served and the phase's health threshold holds; day resets to 1.
//   - Otherwise the day increments within the phase. Exhausting the day
//     budget without the score never force-advances: the target holds at
//     the phase ceiling and the enrollment is flagged stalled.
func NextRampState(e models.WarmupEnrollment, healthScore, sendCap int) models.WarmupEnrollment {
	policy := DefaultPhasePolicies[e.Phase]

	switch {
	case e.Phase == models.PhaseScaleUp && healthScore >= e.TargetHealthScore:
		e.Status = models.WarmupStatusCompleted
		e.Stalled = false
		return e
	case e.Phase != models.PhaseScaleUp && e.DayInPhase >= policy.MaxDays && healthScore >= policy.AdvanceScore:
		e.Phase++
		e.DayInPhase = 1
		e.Stalled = false
	default:
		e.DayInPhase++
		e.Stalled = e.DayInPhase > policy.MaxDays
	}

	e.DailyTarget = DefaultPhasePolicies[e.Phase].DailyTarget(e.DayInPhase, sendCap)
	return e
}

// RampController owns the per-enrollment daily transition. Ticks are
// cheap and idempotent: a transition only applies at the first tick after
// local midnight for the sender's timezone.
type RampController struct {
	Store  store.Store
	Logger *log.Logger
	Now    func() time.Time
}

func NewRampController(st store.Store, logger *log.Logger) *RampController {
	return &RampController{Store: st, Logger: logger, Now: time.Now}
}

// Tick evaluates one enrollment. Paused and terminal enrollments freeze:
// day_in_phase and daily_target do not move while status != active.
func (rc *RampController) Tick(ctx context.Context, e *models.WarmupEnrollment, sender *models.SenderIdentity) error {
	if e.Status != models.WarmupStatusActive {
		return nil
	}

	now := rc.Now()
	today := sender.LocalDate(now)
	if e.LastTransitionDate == today {
		return nil
	}

	// Day rolled over: settle yesterday before ramping.
	if failed, err := rc.closeOutDay(ctx, e, sender, now); err != nil {
		return err
	} else if failed {
		return nil
	}

	next := NextRampState(*e, sender.CurrentHealthScore, sender.DailySendCap)
	*e = next
	e.EmailsSentToday = 0
	e.OpensToday = 0
	e.RepliesToday = 0
	e.TotalDays++
	e.LastTransitionDate = today

	if err := rc.Store.SaveEnrollment(ctx, e); err != nil {
		return fmt.Errorf("saving ramp transition: %w", err)
	}

	if e.Status == models.WarmupStatusCompleted {
		rc.Logger.Printf("Warmup completed for %s (campaign %d) after %d days", e.SenderEmail, e.CampaignID, e.TotalDays)
	} else {
		rc.Logger.Printf("Sender %s (campaign %d) now phase %d day %d, target %d",
			e.SenderEmail, e.CampaignID, e.Phase, e.DayInPhase, e.DailyTarget)
	}
	return nil
}

// closeOutDay applies the failed-send accounting for the day that just
// ended: a day that reserved quota but delivered nothing counts as a
// failed-to-send day, and three in a row fail the enrollment.
func (rc *RampController) closeOutDay(ctx context.Context, e *models.WarmupEnrollment, sender *models.SenderIdentity, now time.Time) (failed bool, err error) {
	yesterday := sender.LocalDate(now.AddDate(0, 0, -1))
	counters, err := rc.Store.CountersSince(ctx, sender.Email, yesterday)
	if err != nil {
		return false, fmt.Errorf("loading counters: %w", err)
	}

	var row *models.DailyCounter
	for i := range counters {
		if counters[i].Date == yesterday {
			row = &counters[i]
			break
		}
	}
	if row == nil || row.Sent == 0 {
		return false, nil
	}

	if row.Delivered == 0 {
		e.ConsecutiveFailedDays++
	} else {
		e.ConsecutiveFailedDays = 0
	}

	if e.ConsecutiveFailedDays >= 3 {
		e.Status = models.WarmupStatusFailed
		e.ActionRequired = true
		if err := rc.Store.SaveEnrollment(ctx, e); err != nil {
			return false, fmt.Errorf("saving failed enrollment: %w", err)
		}
		rc.Logger.Printf("Warmup failed for %s (campaign %d): %d consecutive failed-send days",
			e.SenderEmail, e.CampaignID, e.ConsecutiveFailedDays)
		return true, nil
	}
	return false, nil
}

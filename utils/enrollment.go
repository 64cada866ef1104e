package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/badoux/checkmail"

	"mailwarm/models"
	"mailwarm/store"
)

const (
	// DefaultEnrollmentThreshold is the health score below which a sender
	// gets auto-enrolled when its campaign launches.
	DefaultEnrollmentThreshold = 80
	// DefaultTargetHealthScore is the score at which warmup is satisfied.
	DefaultTargetHealthScore = 90

	orchestratorRetryAttempts = 3
	// Orchestrator retries run on request paths (launch, pause, resume),
	// so the first delay is sub-second rather than the workers' 30s base.
	orchestratorRetryBase = 500 * time.Millisecond
)

// EnrollmentOrchestrator decides who enters warmup and reacts to
// anomalies. Dependency failures are retried with backoff and never
// mutate enrollment state until a decision is confirmed.
type EnrollmentOrchestrator struct {
	Store               store.Store
	Logger              *log.Logger
	EnrollmentThreshold int
	TargetHealthScore   int
	Now                 func() time.Time
}

func NewEnrollmentOrchestrator(st store.Store, logger *log.Logger, threshold, targetScore int) *EnrollmentOrchestrator {
	if threshold <= 0 {
		threshold = DefaultEnrollmentThreshold
	}
	if targetScore <= 0 {
		targetScore = DefaultTargetHealthScore
	}
	return &EnrollmentOrchestrator{
		Store:               st,
		Logger:              logger,
		EnrollmentThreshold: threshold,
		TargetHealthScore:   targetScore,
		Now:                 time.Now,
	}
}

// EnrollCampaign scans the launched campaign's senders and enrolls every
// enabled one whose health score sits below the threshold and that has no
// non-terminal enrollment yet. Per-sender problems are isolated: one bad
// sender never aborts the launch.
func (eo *EnrollmentOrchestrator) EnrollCampaign(ctx context.Context, campaignID uint, senderEmails []string) ([]models.WarmupEnrollment, error) {
	var campaign *models.Campaign
	err := WithRetryBase(ctx, orchestratorRetryAttempts, orchestratorRetryBase, eo.Logger, func() error {
		var lookupErr error
		campaign, lookupErr = eo.Store.GetCampaign(ctx, campaignID)
		return lookupErr
	})
	if err != nil {
		return nil, fmt.Errorf("loading campaign %d: %w", campaignID, err)
	}

	var enrolled []models.WarmupEnrollment
	for _, email := range senderEmails {
		e, err := eo.enrollSender(ctx, campaign.ID, email)
		if err != nil {
			eo.Logger.Printf("Skipping sender %s for campaign %d: %v", email, campaignID, err)
			continue
		}
		if e != nil {
			enrolled = append(enrolled, *e)
		}
	}

	if len(enrolled) > 0 && campaign.Status != models.CampaignStatusWarming {
		if err := eo.Store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusWarming); err != nil {
			eo.Logger.Printf("Failed to mark campaign %d as warming: %v", campaignID, err)
		}
	}

	eo.Logger.Printf("Campaign %d launch: enrolled %d of %d senders into warmup",
		campaignID, len(enrolled), len(senderEmails))
	return enrolled, nil
}

// enrollSender returns (nil, nil) when the sender is healthy enough or
// already enrolled, and the created enrollment otherwise.
func (eo *EnrollmentOrchestrator) enrollSender(ctx context.Context, campaignID uint, email string) (*models.WarmupEnrollment, error) {
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, fmt.Errorf("invalid sender email: %w", err)
	}

	var sender *models.SenderIdentity
	err := WithRetryBase(ctx, orchestratorRetryAttempts, orchestratorRetryBase, eo.Logger, func() error {
		var lookupErr error
		sender, lookupErr = eo.Store.GetSender(ctx, email)
		return lookupErr
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	if !sender.Enabled {
		return nil, ErrSenderDisabled
	}
	if sender.CurrentHealthScore >= eo.EnrollmentThreshold {
		return nil, nil
	}

	var e *models.WarmupEnrollment
	if existing, err := eo.Store.GetEnrollment(ctx, campaignID, email); err == nil {
		if !existing.Status.Terminal() {
			return nil, nil
		}
		// Manual re-enrollment after a completed or failed warmup reuses
		// the row: the (campaign, sender) unique index admits only one.
		e = existing
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := eo.Now()
	fresh := e == nil
	if fresh {
		e = &models.WarmupEnrollment{CampaignID: campaignID, SenderEmail: email}
	}
	e.Phase = models.PhaseFoundation
	e.DayInPhase = 1
	e.TotalDays = 1
	e.DailyTarget = InitialDailyTarget(sender.DailySendCap)
	e.EmailsSentToday = 0
	e.OpensToday = 0
	e.RepliesToday = 0
	e.InitialHealthScore = sender.CurrentHealthScore
	e.TargetHealthScore = eo.TargetHealthScore
	e.Status = models.WarmupStatusActive
	e.Stalled = false
	e.ActionRequired = false
	e.ConsecutiveFailedDays = 0
	e.LastTransitionDate = sender.LocalDate(now)
	e.PausedAt = nil

	err = WithRetryBase(ctx, orchestratorRetryAttempts, orchestratorRetryBase, eo.Logger, func() error {
		if fresh {
			return eo.Store.CreateEnrollment(ctx, e)
		}
		return eo.Store.SaveEnrollment(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	LogEvent("warmup_enrolled", map[string]interface{}{
		"campaign_id":  campaignID,
		"sender_email": email,
		"health_score": sender.CurrentHealthScore,
		"daily_target": e.DailyTarget,
	})
	return e, nil
}

// EvaluateAnomalies sweeps active enrollments for spam reports in the
// last 24 hours and pauses the affected ones with actionRequired raised.
// One enrollment's failure never aborts the sweep.
func (eo *EnrollmentOrchestrator) EvaluateAnomalies(ctx context.Context) error {
	active, err := eo.Store.ListEnrollmentsByStatus(ctx, models.WarmupStatusActive)
	if err != nil {
		return fmt.Errorf("listing active enrollments: %w", err)
	}

	for i := range active {
		e := active[i]
		spam, err := eo.recentSpamReports(ctx, e.SenderEmail)
		if err != nil {
			eo.Logger.Printf("Anomaly check failed for %s (campaign %d): %v", e.SenderEmail, e.CampaignID, err)
			continue
		}
		if spam == 0 {
			continue
		}
		if err := eo.pauseForAnomaly(ctx, &e, fmt.Sprintf("%d spam report(s) in the last 24h", spam)); err != nil {
			eo.Logger.Printf("Failed to pause %s (campaign %d): %v", e.SenderEmail, e.CampaignID, err)
		}
	}
	return nil
}

// HandleSpamReport pauses every active enrollment of the sender as soon
// as a spam report arrives, without waiting for the next sweep.
func (eo *EnrollmentOrchestrator) HandleSpamReport(ctx context.Context, senderEmail string) error {
	enrollments, err := eo.Store.ListEnrollmentsBySender(ctx, senderEmail)
	if err != nil {
		return fmt.Errorf("listing enrollments for %s: %w", senderEmail, err)
	}
	for i := range enrollments {
		e := enrollments[i]
		if e.Status != models.WarmupStatusActive {
			continue
		}
		if err := eo.pauseForAnomaly(ctx, &e, "spam report received"); err != nil {
			eo.Logger.Printf("Failed to pause %s (campaign %d): %v", e.SenderEmail, e.CampaignID, err)
		}
	}
	return nil
}

func (eo *EnrollmentOrchestrator) recentSpamReports(ctx context.Context, senderEmail string) (int, error) {
	sender, err := eo.Store.GetSender(ctx, senderEmail)
	if err != nil {
		return 0, err
	}
	now := eo.Now()
	// Day-grained counters: today plus yesterday approximate 24 hours.
	since := sender.LocalDate(now.AddDate(0, 0, -1))
	counters, err := eo.Store.CountersSince(ctx, senderEmail, since)
	if err != nil {
		return 0, err
	}
	spam := 0
	for _, row := range counters {
		spam += row.SpamReports
	}
	return spam, nil
}

func (eo *EnrollmentOrchestrator) pauseForAnomaly(ctx context.Context, e *models.WarmupEnrollment, reason string) error {
	if !e.Status.CanTransitionTo(models.WarmupStatusPaused) {
		return nil
	}
	now := eo.Now()
	e.Status = models.WarmupStatusPaused
	e.ActionRequired = true
	e.PausedAt = &now

	err := WithRetryBase(ctx, orchestratorRetryAttempts, orchestratorRetryBase, eo.Logger, func() error {
		return eo.Store.SaveEnrollment(ctx, e)
	})
	if err != nil {
		return err
	}

	LogError("warmup_anomaly", errors.New(reason), map[string]interface{}{
		"campaign_id":  e.CampaignID,
		"sender_email": e.SenderEmail,
	})
	return nil
}

// Pause freezes the enrollment. Repeated pauses are idempotent; pausing a
// terminal enrollment is rejected.
func (eo *EnrollmentOrchestrator) Pause(ctx context.Context, campaignID uint, senderEmail string) error {
	e, err := eo.getEnrollment(ctx, campaignID, senderEmail)
	if err != nil {
		return err
	}
	if e.Status == models.WarmupStatusPaused {
		return nil
	}
	if !e.Status.CanTransitionTo(models.WarmupStatusPaused) {
		return fmt.Errorf("%w: cannot pause %s enrollment", ErrInvalidEnrollmentState, e.Status)
	}
	now := eo.Now()
	e.Status = models.WarmupStatusPaused
	e.PausedAt = &now
	return eo.saveWithRetry(ctx, e)
}

// Resume continues the ramp from the frozen point. Warmup days accrue
// only while active, so the transition date restarts at today.
func (eo *EnrollmentOrchestrator) Resume(ctx context.Context, campaignID uint, senderEmail string) error {
	e, err := eo.getEnrollment(ctx, campaignID, senderEmail)
	if err != nil {
		return err
	}
	if e.Status == models.WarmupStatusActive {
		return nil
	}
	if !e.Status.CanTransitionTo(models.WarmupStatusActive) {
		return fmt.Errorf("%w: cannot resume %s enrollment", ErrInvalidEnrollmentState, e.Status)
	}

	sender, err := eo.Store.GetSender(ctx, senderEmail)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	e.Status = models.WarmupStatusActive
	e.ActionRequired = false
	e.PausedAt = nil
	if sender != nil {
		e.LastTransitionDate = sender.LocalDate(eo.Now())
	}
	return eo.saveWithRetry(ctx, e)
}

// Adjust lets an operator override today's target. Overrides only
// throttle down: the phase formula's value is the ceiling, so the
// protective ramp cannot be bypassed from the dashboard.
func (eo *EnrollmentOrchestrator) Adjust(ctx context.Context, campaignID uint, senderEmail string, target int) error {
	e, err := eo.getEnrollment(ctx, campaignID, senderEmail)
	if err != nil {
		return err
	}
	if e.Status.Terminal() {
		return fmt.Errorf("%w: cannot adjust %s enrollment", ErrInvalidEnrollmentState, e.Status)
	}
	if target < 1 {
		return fmt.Errorf("%w: daily target must be at least 1", ErrInvalidEnrollmentState)
	}

	sendCap := 0
	if sender, err := eo.Store.GetSender(ctx, senderEmail); err == nil {
		sendCap = sender.DailySendCap
	}
	ceiling := DefaultPhasePolicies[e.Phase].DailyTarget(e.DayInPhase, sendCap)
	if target > ceiling {
		return fmt.Errorf("%w: daily target may only be lowered (phase allows at most %d)", ErrInvalidEnrollmentState, ceiling)
	}

	if e.DailyTarget == target {
		return nil
	}
	e.DailyTarget = target
	return eo.saveWithRetry(ctx, e)
}

// NotifySendFailure records that a reserved slot ended in a failed send,
// so operators can tell "quota exhausted, healthy" from "sends failing,
// unhealthy". The slot itself is not refunded.
func (eo *EnrollmentOrchestrator) NotifySendFailure(ctx context.Context, campaignID uint, senderEmail string) {
	LogEvent("warmup_send_failure", map[string]interface{}{
		"campaign_id":  campaignID,
		"sender_email": senderEmail,
	})
}

func (eo *EnrollmentOrchestrator) getEnrollment(ctx context.Context, campaignID uint, senderEmail string) (*models.WarmupEnrollment, error) {
	e, err := eo.Store.GetEnrollment(ctx, campaignID, senderEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return e, nil
}

func (eo *EnrollmentOrchestrator) saveWithRetry(ctx context.Context, e *models.WarmupEnrollment) error {
	return WithRetryBase(ctx, orchestratorRetryAttempts, orchestratorRetryBase, eo.Logger, func() error {
		return eo.Store.SaveEnrollment(ctx, e)
	})
}

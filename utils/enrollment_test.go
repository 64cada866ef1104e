package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"mailwarm/models"
	"mailwarm/store"
)

func newTestOrchestrator(st *store.MemoryStore) *EnrollmentOrchestrator {
	eo := NewEnrollmentOrchestrator(st, testLogger(), 80, 90)
	eo.Now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return eo
}

func seedLaunchFixture(st *store.MemoryStore) {
	st.SeedCampaign(models.Campaign{
		Model:      gorm.Model{ID: 1},
		Name:       "Q1 outreach",
		Status:     models.CampaignStatusWarming,
		DailyLimit: 1000,
	})
	st.SeedSender(models.SenderIdentity{Email: "cold@b.co", CurrentHealthScore: 40, DailySendCap: 500, Enabled: true})
	st.SeedSender(models.SenderIdentity{Email: "warm@b.co", CurrentHealthScore: 85, DailySendCap: 500, Enabled: true})
	st.SeedSender(models.SenderIdentity{Email: "off@b.co", CurrentHealthScore: 10, DailySendCap: 500, Enabled: false})
}

func TestEnrollCampaignSelectsColdSendersOnly(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)

	enrolled, err := eo.EnrollCampaign(context.Background(), 1,
		[]string{"cold@b.co", "warm@b.co", "off@b.co", "not-an-email"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(enrolled) != 1 {
		t.Fatalf("expected 1 enrollment, got %d", len(enrolled))
	}

	e := enrolled[0]
	if e.SenderEmail != "cold@b.co" {
		t.Fatalf("wrong sender enrolled: %s", e.SenderEmail)
	}
	if e.Phase != models.PhaseFoundation || e.DayInPhase != 1 {
		t.Fatalf("expected Foundation day 1, got %s day %d", e.Phase, e.DayInPhase)
	}
	if e.DailyTarget != 7 {
		t.Fatalf("expected initial target 7, got %d", e.DailyTarget)
	}
	if e.InitialHealthScore != 40 {
		t.Fatalf("expected initial score 40, got %d", e.InitialHealthScore)
	}
	if e.TargetHealthScore != 90 {
		t.Fatalf("expected target score 90, got %d", e.TargetHealthScore)
	}
	if e.LastTransitionDate != "2026-03-10" {
		t.Fatalf("expected transition date 2026-03-10, got %s", e.LastTransitionDate)
	}
}

func TestEnrollCampaignIdempotentOnRelaunch(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)

	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("first launch: %v", err)
	}
	again, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"})
	if err != nil {
		t.Fatalf("second launch: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("relaunch must not duplicate enrollments, got %d", len(again))
	}
}

func TestEnrollCampaignReenrollsAfterFailure(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)
	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("first launch: %v", err)
	}

	// Mark the enrollment failed, as three zero-delivery days would.
	e, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	e.Status = models.WarmupStatusFailed
	e.ActionRequired = true
	e.ConsecutiveFailedDays = 3
	e.Phase = models.PhaseEngagement
	e.DayInPhase = 4
	e.TotalDays = 11
	_ = st.SaveEnrollment(context.Background(), e)

	// The unique (campaign, sender) index admits one row, so the relaunch
	// must reuse it rather than insert a duplicate.
	enrolled, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"})
	if err != nil {
		t.Fatalf("relaunch: %v", err)
	}
	if len(enrolled) != 1 {
		t.Fatalf("failed sender must be re-enrollable, got %d enrollments", len(enrolled))
	}

	after, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	if after.ID != e.ID {
		t.Fatalf("re-enrollment must reuse the existing row: id %d vs %d", after.ID, e.ID)
	}
	if after.Status != models.WarmupStatusActive {
		t.Fatalf("expected active, got %s", after.Status)
	}
	if after.Phase != models.PhaseFoundation || after.DayInPhase != 1 || after.TotalDays != 1 {
		t.Fatalf("ramp not reset: %+v", after)
	}
	if after.ActionRequired || after.ConsecutiveFailedDays != 0 {
		t.Fatalf("failure state not cleared: %+v", after)
	}
}

func TestEnrollCampaignMarksCampaignWarming(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	_ = st.UpdateCampaignStatus(context.Background(), 1, "active")
	eo := newTestOrchestrator(st)

	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	campaign, _ := st.GetCampaign(context.Background(), 1)
	if campaign.Status != models.CampaignStatusWarming {
		t.Fatalf("expected warming campaign, got %s", campaign.Status)
	}

	// A launch that enrolls nobody leaves the campaign status alone.
	st.SeedCampaign(models.Campaign{Model: gorm.Model{ID: 2}, Name: "Q2", Status: "active", DailyLimit: 1000})
	if _, err := eo.EnrollCampaign(context.Background(), 2, []string{"warm@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	campaign, _ = st.GetCampaign(context.Background(), 2)
	if campaign.Status != "active" {
		t.Fatalf("no enrollments must not change status, got %s", campaign.Status)
	}
}

func TestEnrollCampaignUnknownCampaign(t *testing.T) {
	eo := newTestOrchestrator(store.NewMemoryStore())
	if _, err := eo.EnrollCampaign(context.Background(), 42, []string{"cold@b.co"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPauseResumeLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)
	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}

	if err := eo.Pause(context.Background(), 1, "cold@b.co"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	e, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	if e.Status != models.WarmupStatusPaused || e.PausedAt == nil {
		t.Fatalf("not paused: %+v", e)
	}

	// Repeating the pause is a no-op, not a conflict.
	if err := eo.Pause(context.Background(), 1, "cold@b.co"); err != nil {
		t.Fatalf("repeated pause: %v", err)
	}

	if err := eo.Resume(context.Background(), 1, "cold@b.co"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	e, _ = st.GetEnrollment(context.Background(), 1, "cold@b.co")
	if e.Status != models.WarmupStatusActive || e.PausedAt != nil {
		t.Fatalf("not resumed: %+v", e)
	}
	if e.ActionRequired {
		t.Fatal("resume must clear actionRequired")
	}
	if e.LastTransitionDate != "2026-03-10" {
		t.Fatalf("resume must restart the day clock, got %s", e.LastTransitionDate)
	}
}

func TestResumeCompletedRejected(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)
	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	e, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	e.Status = models.WarmupStatusCompleted
	_ = st.SaveEnrollment(context.Background(), e)

	if err := eo.Resume(context.Background(), 1, "cold@b.co"); !errors.Is(err, ErrInvalidEnrollmentState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestAdjustOnlyThrottlesDown(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)
	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}

	// Foundation day 1 allows at most 7.
	if err := eo.Adjust(context.Background(), 1, "cold@b.co", 50); !errors.Is(err, ErrInvalidEnrollmentState) {
		t.Fatalf("raising past the phase ceiling must fail, got %v", err)
	}
	if err := eo.Adjust(context.Background(), 1, "cold@b.co", 3); err != nil {
		t.Fatalf("lowering: %v", err)
	}
	e, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	if e.DailyTarget != 3 {
		t.Fatalf("expected target 3, got %d", e.DailyTarget)
	}
	if err := eo.Adjust(context.Background(), 1, "cold@b.co", 0); !errors.Is(err, ErrInvalidEnrollmentState) {
		t.Fatalf("zero target must fail, got %v", err)
	}
}

func TestHandleSpamReportPausesActiveEnrollments(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)
	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}

	if err := eo.HandleSpamReport(context.Background(), "cold@b.co"); err != nil {
		t.Fatalf("spam report: %v", err)
	}
	e, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	if e.Status != models.WarmupStatusPaused {
		t.Fatalf("expected paused, got %s", e.Status)
	}
	if !e.ActionRequired {
		t.Fatal("spam pause must raise actionRequired")
	}
}

func TestEvaluateAnomaliesSweepsRecentSpam(t *testing.T) {
	st := store.NewMemoryStore()
	seedLaunchFixture(st)
	eo := newTestOrchestrator(st)
	if _, err := eo.EnrollCampaign(context.Background(), 1, []string{"cold@b.co"}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	_ = st.AddEngagement(context.Background(), "cold@b.co", "2026-03-10", models.EngagementSpamReport, 1)

	if err := eo.EvaluateAnomalies(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	e, _ := st.GetEnrollment(context.Background(), 1, "cold@b.co")
	if e.Status != models.WarmupStatusPaused || !e.ActionRequired {
		t.Fatalf("expected paused with actionRequired, got %+v", e)
	}
}

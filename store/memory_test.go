package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailwarm/models"
)

func activeEnrollment(campaignID uint, email string) *models.WarmupEnrollment {
	return &models.WarmupEnrollment{
		CampaignID:        campaignID,
		SenderEmail:       email,
		Phase:             models.PhaseFoundation,
		DayInPhase:        1,
		DailyTarget:       7,
		TargetHealthScore: 90,
		Status:            models.WarmupStatusActive,
	}
}

func TestCreateEnrollmentConflictsOnDuplicate(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateEnrollment(context.Background(), activeEnrollment(1, "a@b.co")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.CreateEnrollment(context.Background(), activeEnrollment(1, "a@b.co"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate (campaign, sender) must conflict, got %v", err)
	}
	// A different campaign for the same sender is a distinct row.
	if err := s.CreateEnrollment(context.Background(), activeEnrollment(2, "a@b.co")); err != nil {
		t.Fatalf("second campaign: %v", err)
	}
}

func TestBumpEnrollmentEngagementScopedToCampaign(t *testing.T) {
	s := NewMemoryStore()
	_ = s.CreateEnrollment(context.Background(), activeEnrollment(1, "a@b.co"))
	_ = s.CreateEnrollment(context.Background(), activeEnrollment(2, "a@b.co"))

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := s.BumpEnrollmentEngagement(context.Background(), 1, "a@b.co", models.EngagementOpened, at); err != nil {
		t.Fatalf("bump: %v", err)
	}

	one, _ := s.GetEnrollment(context.Background(), 1, "a@b.co")
	two, _ := s.GetEnrollment(context.Background(), 2, "a@b.co")
	if one.OpensToday != 1 {
		t.Fatalf("campaign 1 open not counted: %d", one.OpensToday)
	}
	if two.OpensToday != 0 {
		t.Fatalf("campaign 2 must not count campaign 1's open: %d", two.OpensToday)
	}
}

func TestBumpEnrollmentEngagementUnscopedHitsAll(t *testing.T) {
	s := NewMemoryStore()
	_ = s.CreateEnrollment(context.Background(), activeEnrollment(1, "a@b.co"))
	_ = s.CreateEnrollment(context.Background(), activeEnrollment(2, "a@b.co"))

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := s.BumpEnrollmentEngagement(context.Background(), 0, "a@b.co", models.EngagementReplied, at); err != nil {
		t.Fatalf("bump: %v", err)
	}

	one, _ := s.GetEnrollment(context.Background(), 1, "a@b.co")
	two, _ := s.GetEnrollment(context.Background(), 2, "a@b.co")
	if one.RepliesToday != 1 || two.RepliesToday != 1 {
		t.Fatalf("unscoped reply must hit all enrollments: %d, %d", one.RepliesToday, two.RepliesToday)
	}
}

package utils

import (
	"context"
	"testing"
	"time"

	"mailwarm/models"
	"mailwarm/store"
)

func TestComputeHealthScoreNoSendsKeepsLastKnown(t *testing.T) {
	got := ComputeHealthScore(nil, "2026-03-10", 62)
	if got != 62 {
		t.Fatalf("expected last known 62, got %d", got)
	}
}

func TestComputeHealthScoreHealthyWeek(t *testing.T) {
	counters := []models.DailyCounter{
		{Date: "2026-03-10", Sent: 100, Delivered: 100, Opened: 50, Replied: 20},
	}
	got := ComputeHealthScore(counters, "2026-03-10", 50)
	if got != 87 {
		t.Fatalf("expected 87, got %d", got)
	}
}

func TestComputeHealthScoreSpamCapsSubScore(t *testing.T) {
	counters := []models.DailyCounter{
		{Date: "2026-03-10", Sent: 100, Delivered: 100, Opened: 50, Replied: 20, SpamReports: 1},
	}
	got := ComputeHealthScore(counters, "2026-03-10", 50)
	// One spam report halves the spam sub-score even at 1% rate.
	if got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
}

func TestComputeHealthScoreReplyRateCapped(t *testing.T) {
	modest := []models.DailyCounter{
		{Date: "2026-03-10", Sent: 100, Delivered: 100, Replied: 10},
	}
	farmed := []models.DailyCounter{
		{Date: "2026-03-10", Sent: 100, Delivered: 100, Replied: 90},
	}
	if a, b := ComputeHealthScore(modest, "2026-03-10", 50), ComputeHealthScore(farmed, "2026-03-10", 50); a != b {
		t.Fatalf("reply rates above 10%% must not raise the score: %d vs %d", a, b)
	}
}

func TestComputeHealthScoreRecencyDecay(t *testing.T) {
	base := models.DailyCounter{Date: "2026-03-10", Sent: 50, Delivered: 50}
	recentBounce := []models.DailyCounter{
		base,
		{Date: "2026-03-09", Sent: 50, Bounced: 50},
	}
	oldBounce := []models.DailyCounter{
		base,
		{Date: "2026-03-04", Sent: 50, Bounced: 50},
	}
	recent := ComputeHealthScore(recentBounce, "2026-03-10", 50)
	old := ComputeHealthScore(oldBounce, "2026-03-10", 50)
	if old <= recent {
		t.Fatalf("older bounces should weigh less: old=%d recent=%d", old, recent)
	}
}

func TestComputeHealthScoreIgnoresOutsideWindow(t *testing.T) {
	inWindow := []models.DailyCounter{
		{Date: "2026-03-10", Sent: 10, Delivered: 10},
	}
	withStale := append([]models.DailyCounter{
		{Date: "2026-02-20", Sent: 100, Bounced: 100},
	}, inWindow...)
	if a, b := ComputeHealthScore(inWindow, "2026-03-10", 50), ComputeHealthScore(withStale, "2026-03-10", 50); a != b {
		t.Fatalf("counters older than the window changed the score: %d vs %d", a, b)
	}
}

func TestRecomputePersistsScoreAndHistory(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", CurrentHealthScore: 50, DailySendCap: 500})
	_ = st.AddEngagement(context.Background(), "a@b.co", "2026-03-10", models.EngagementSent, 100)
	_ = st.AddEngagement(context.Background(), "a@b.co", "2026-03-10", models.EngagementDelivered, 100)
	_ = st.AddEngagement(context.Background(), "a@b.co", "2026-03-10", models.EngagementOpened, 50)
	_ = st.AddEngagement(context.Background(), "a@b.co", "2026-03-10", models.EngagementReplied, 20)

	hc := NewHealthScoreCalculator(st, testLogger())
	hc.Now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	score, err := hc.Recompute(context.Background(), "a@b.co")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if score != 87 {
		t.Fatalf("expected 87, got %d", score)
	}

	sender, _ := st.GetSender(context.Background(), "a@b.co")
	if sender.CurrentHealthScore != 87 {
		t.Fatalf("score not persisted: %d", sender.CurrentHealthScore)
	}
	if history := st.ScoreHistory(); len(history) != 1 || history[0].Score != 87 {
		t.Fatalf("expected one history row with score 87, got %+v", history)
	}
}

func TestRecomputeNoActivityKeepsScore(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", CurrentHealthScore: 50, DailySendCap: 500})

	hc := NewHealthScoreCalculator(st, testLogger())
	hc.Now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	score, err := hc.Recompute(context.Background(), "a@b.co")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if score != 50 {
		t.Fatalf("zero sends must keep the last score, got %d", score)
	}
}

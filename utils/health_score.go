package utils

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"mailwarm/models"
	"mailwarm/store"
)

const (
	// ScoreWindowDays is how far back engagement counts toward the score.
	ScoreWindowDays = 7
	// scoreHalfLifeDays controls the exponential recency decay: a day's
	// weight halves every three days of age.
	scoreHalfLifeDays = 3.0

	weightDelivery = 0.35
	weightOpen     = 0.25
	weightReply    = 0.15 // capped so reply volume cannot dominate the score
	weightSpam     = 0.25

	// fullMarksReplyRate: reply rates at or above 10% earn the full reply
	// sub-score, so reply-farming cannot buy more than its cap.
	fullMarksReplyRate = 0.10
	// spamPenaltyFactor: each percent of spam rate costs ten points of
	// the spam sub-score.
	spamPenaltyFactor = 10.0
)

// ComputeHealthScore derives the 0-100 deliverability score from the
// sender's recent daily counters. today is the sender-local date the
// recency decay anchors on; lastKnown is returned untouched when the
// window contains no sends, since no data is not bad data.
func ComputeHealthScore(counters []models.DailyCounter, today string, lastKnown int) int {
	anchor, err := time.Parse(models.DateLayout, today)
	if err != nil {
		return lastKnown
	}

	var sent, delivered, bounced, opened, replied, spam float64
	var rawSpam int
	for _, row := range counters {
		day, err := time.Parse(models.DateLayout, row.Date)
		if err != nil {
			continue
		}
		age := anchor.Sub(day).Hours() / 24
		if age < 0 || age > ScoreWindowDays {
			continue
		}
		w := math.Pow(0.5, age/scoreHalfLifeDays)
		sent += w * float64(row.Sent)
		delivered += w * float64(row.Delivered)
		bounced += w * float64(row.Bounced)
		opened += w * float64(row.Opened)
		replied += w * float64(row.Replied)
		spam += w * float64(row.SpamReports)
		rawSpam += row.SpamReports
	}

	if sent == 0 {
		return lastKnown
	}

	// Laplace smoothing keeps a single bounce on a cold, low-volume
	// sender from cratering the score.
	deliverySub := 1 - (bounced+1)/(sent+2)

	openSub := clamp01(opened / sent)
	replySub := clamp01(replied / sent / fullMarksReplyRate)

	spamSub := clamp01(1 - spamPenaltyFactor*(spam/sent))
	if rawSpam > 0 && spamSub > 0.5 {
		spamSub = 0.5
	}

	score := int(math.Round(100 * (weightDelivery*deliverySub +
		weightOpen*openSub +
		weightReply*replySub +
		weightSpam*spamSub)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// HealthScoreCalculator recomputes and persists sender scores. It makes
// no scheduling decisions; the ramp controller reads the stored score at
// its next tick.
type HealthScoreCalculator struct {
	Store  store.Store
	Logger *log.Logger
	Now    func() time.Time
}

func NewHealthScoreCalculator(st store.Store, logger *log.Logger) *HealthScoreCalculator {
	return &HealthScoreCalculator{Store: st, Logger: logger, Now: time.Now}
}

// Recompute rebuilds the sender's score from the last ScoreWindowDays of
// counters, persists it when it moved, and appends a history row for the
// dashboard graph.
func (hc *HealthScoreCalculator) Recompute(ctx context.Context, senderEmail string) (int, error) {
	sender, err := hc.Store.GetSender(ctx, senderEmail)
	if err != nil {
		return 0, fmt.Errorf("loading sender %s: %w", senderEmail, err)
	}

	now := hc.Now()
	since := sender.LocalDate(now.AddDate(0, 0, -(ScoreWindowDays - 1)))
	counters, err := hc.Store.CountersSince(ctx, senderEmail, since)
	if err != nil {
		return 0, fmt.Errorf("loading counters for %s: %w", senderEmail, err)
	}

	score := ComputeHealthScore(counters, sender.LocalDate(now), sender.CurrentHealthScore)
	if score != sender.CurrentHealthScore {
		if err := hc.Store.UpdateSenderScore(ctx, senderEmail, score, now); err != nil {
			return 0, fmt.Errorf("saving score for %s: %w", senderEmail, err)
		}
	}

	if err := hc.Store.AppendScoreHistory(ctx, &models.SenderScoreHistory{
		SenderEmail: senderEmail,
		Score:       score,
		ComputedAt:  now,
	}); err != nil {
		// History is an audit trail; losing a row must not fail scoring.
		hc.Logger.Printf("Failed to append score history for %s: %v", senderEmail, err)
	}

	return score, nil
}

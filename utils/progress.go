package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"mailwarm/models"
	"mailwarm/store"
)

// WarmingSender is the per-enrollment row the dashboard renders.
type WarmingSender struct {
	SenderEmail        string              `json:"sender_email"`
	Phase              models.WarmupPhase  `json:"phase"`
	DayInPhase         int                 `json:"day_in_phase"`
	TotalDays          int                 `json:"total_days"`
	DailyTarget        int                 `json:"daily_target"`
	EmailsSentToday    int                 `json:"emails_sent_today"`
	OpensToday         int                 `json:"opens_today"`
	RepliesToday       int                 `json:"replies_today"`
	CurrentHealthScore int                 `json:"current_health_score"`
	TargetHealthScore  int                 `json:"target_health_score"`
	Status             models.WarmupStatus `json:"status"`
	ProgressPercentage int                 `json:"progress_percentage"`
	Stalled            bool                `json:"stalled"`
	ActionRequired     bool                `json:"action_required"`
}

// WarmingCampaign groups a campaign with its enrolled senders.
type WarmingCampaign struct {
	ID      uint            `json:"id"`
	Name    string          `json:"name"`
	Status  string          `json:"status"`
	Senders []WarmingSender `json:"senders"`
}

// WarmingSummary is the account-level rollup. Field names match the
// dashboard contract.
type WarmingSummary struct {
	TotalCampaigns       int `json:"totalCampaigns"`
	TotalSenders         int `json:"totalSenders"`
	ActiveWarmups        int `json:"activeWarmups"`
	TotalEmailsSentToday int `json:"totalEmailsSentToday"`
	TotalOpensToday      int `json:"totalOpensToday"`
	TotalRepliesToday    int `json:"totalRepliesToday"`
	AverageHealthScore   int `json:"averageHealthScore"`
	OpenRate             int `json:"openRate"`
	ReplyRate            int `json:"replyRate"`
}

// CampaignSummary is the per-campaign rollup shown on the detail view.
type CampaignSummary struct {
	TotalSenders           int     `json:"totalSenders"`
	AveragePhase           float64 `json:"averagePhase"`
	AverageProgress        int     `json:"averageProgress"`
	AverageHealthScore     int     `json:"averageHealthScore"`
	EstimatedDaysRemaining int     `json:"estimatedDaysRemaining"`
}

// WarmingProgress is the GET /warmup/progress payload.
type WarmingProgress struct {
	Campaigns []WarmingCampaign `json:"campaigns"`
	Summary   WarmingSummary    `json:"summary"`
}

// CampaignWarmupView is the single-campaign payload.
type CampaignWarmupView struct {
	Campaign WarmingCampaign `json:"campaign"`
	Summary  CampaignSummary `json:"summary"`
}

// fullRampDays is the nominal length of the complete ramp, used for the
// days-remaining estimate.
const fullRampDays = 35

// ProgressAggregator is the pure read side: it never mutates enrollments
// and tolerates partial data, returning best-effort results when
// individual campaigns fail to load.
type ProgressAggregator struct {
	Store  store.Store
	Logger *log.Logger
}

func NewProgressAggregator(st store.Store, logger *log.Logger) *ProgressAggregator {
	return &ProgressAggregator{Store: st, Logger: logger}
}

// Progress rolls up every campaign that has warmup enrollments.
func (pa *ProgressAggregator) Progress(ctx context.Context) (*WarmingProgress, error) {
	ids, err := pa.Store.ListEnrolledCampaignIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing warming campaigns: %w", err)
	}

	out := &WarmingProgress{Campaigns: []WarmingCampaign{}}
	var all []WarmingSender
	for _, id := range ids {
		campaign, err := pa.campaignView(ctx, id)
		if err != nil {
			pa.Logger.Printf("Skipping campaign %d in rollup: %v", id, err)
			continue
		}
		out.Campaigns = append(out.Campaigns, *campaign)
		all = append(all, campaign.Senders...)
	}

	out.Summary = BuildSummary(len(out.Campaigns), all)
	return out, nil
}

// CampaignProgress builds the detail view for one campaign.
func (pa *ProgressAggregator) CampaignProgress(ctx context.Context, campaignID uint) (*CampaignWarmupView, error) {
	campaign, err := pa.campaignView(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignWarmupView{
		Campaign: *campaign,
		Summary:  BuildCampaignSummary(campaign.Senders),
	}, nil
}

func (pa *ProgressAggregator) campaignView(ctx context.Context, campaignID uint) (*WarmingCampaign, error) {
	campaign, err := pa.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("campaign %d not found", campaignID)
		}
		return nil, err
	}

	enrollments, err := pa.Store.ListEnrollmentsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	view := &WarmingCampaign{
		ID:      campaign.ID,
		Name:    campaign.Name,
		Status:  campaign.Status,
		Senders: make([]WarmingSender, 0, len(enrollments)),
	}
	for i := range enrollments {
		view.Senders = append(view.Senders, pa.senderView(ctx, &enrollments[i]))
	}
	return view, nil
}

// senderView joins an enrollment with its sender's current score. A
// missing sender row degrades to a zero score instead of failing the
// whole rollup.
func (pa *ProgressAggregator) senderView(ctx context.Context, e *models.WarmupEnrollment) WarmingSender {
	score := 0
	if sender, err := pa.Store.GetSender(ctx, e.SenderEmail); err == nil {
		score = sender.CurrentHealthScore
	} else {
		pa.Logger.Printf("No sender record for %s, reporting zero health score", e.SenderEmail)
	}

	return WarmingSender{
		SenderEmail:        e.SenderEmail,
		Phase:              e.Phase,
		DayInPhase:         e.DayInPhase,
		TotalDays:          e.TotalDays,
		DailyTarget:        e.DailyTarget,
		EmailsSentToday:    e.EmailsSentToday,
		OpensToday:         e.OpensToday,
		RepliesToday:       e.RepliesToday,
		CurrentHealthScore: score,
		TargetHealthScore:  e.TargetHealthScore,
		Status:             e.Status,
		ProgressPercentage: e.ProgressPercentage(score),
		Stalled:            e.Stalled,
		ActionRequired:     e.ActionRequired,
	}
}

// BuildSummary folds sender rows into the account-level summary. All rate
// computations guard the zero denominator and report 0, never an error.
func BuildSummary(totalCampaigns int, senders []WarmingSender) WarmingSummary {
	s := WarmingSummary{TotalCampaigns: totalCampaigns}
	if len(senders) == 0 {
		return s
	}

	healthTotal := 0
	for _, sender := range senders {
		s.TotalSenders++
		s.TotalEmailsSentToday += sender.EmailsSentToday
		s.TotalOpensToday += sender.OpensToday
		s.TotalRepliesToday += sender.RepliesToday
		healthTotal += sender.CurrentHealthScore
		if sender.Status == models.WarmupStatusActive {
			s.ActiveWarmups++
		}
	}

	s.AverageHealthScore = int(math.Round(float64(healthTotal) / float64(s.TotalSenders)))
	if s.TotalEmailsSentToday > 0 {
		s.OpenRate = int(math.Round(100 * float64(s.TotalOpensToday) / float64(s.TotalEmailsSentToday)))
		s.ReplyRate = int(math.Round(100 * float64(s.TotalRepliesToday) / float64(s.TotalEmailsSentToday)))
	}
	return s
}

// BuildCampaignSummary folds one campaign's sender rows into its detail
// summary.
func BuildCampaignSummary(senders []WarmingSender) CampaignSummary {
	if len(senders) == 0 {
		return CampaignSummary{}
	}

	var phaseTotal, progressTotal, healthTotal, daysTotal int
	for _, sender := range senders {
		phaseTotal += int(sender.Phase)
		progressTotal += sender.ProgressPercentage
		healthTotal += sender.CurrentHealthScore
		daysTotal += sender.TotalDays
	}

	n := float64(len(senders))
	remaining := fullRampDays - int(math.Round(float64(daysTotal)/n))
	if remaining < 0 {
		remaining = 0
	}
	return CampaignSummary{
		TotalSenders:           len(senders),
		AveragePhase:           math.Round(10*float64(phaseTotal)/n) / 10,
		AverageProgress:        int(math.Round(float64(progressTotal) / n)),
		AverageHealthScore:     int(math.Round(float64(healthTotal) / n)),
		EstimatedDaysRemaining: remaining,
	}
}

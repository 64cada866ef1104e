package worker

import (
	"context"
	"log"
	"time"

	"mailwarm/models"
	"mailwarm/store"
	"mailwarm/utils"
)

// WarmupScheduler drives the daily ramp. Every tick it walks the active
// enrollments and lets the ramp controller decide whether the sender's
// local day has rolled over. Ticks are idempotent so the interval only
// bounds how late a transition can land, never how often it applies.
type WarmupScheduler struct {
	Store  store.Store
	Ramp   *utils.RampController
	Logger *log.Logger

	tickInterval time.Duration
	lastResetDay string
}

func NewWarmupScheduler(st store.Store, logger *log.Logger, tickInterval time.Duration) *WarmupScheduler {
	return &WarmupScheduler{
		Store:        st,
		Ramp:         utils.NewRampController(st, logger),
		Logger:       logger,
		tickInterval: tickInterval,
		// Start with today marked as reset so a restart mid-day does not
		// wipe counters that already accumulated.
		lastResetDay: time.Now().UTC().Format(models.DateLayout),
	}
}

func (ws *WarmupScheduler) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	ws.Logger.Println("Warmup scheduler started")

	ticker := time.NewTicker(ws.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ws.Logger.Println("Warmup scheduler shutting down...")
			return
		case <-ticker.C:
			ws.processActiveEnrollments(ctx)
			ws.resetCampaignCounters(ctx)
		}
	}
}

func (ws *WarmupScheduler) processActiveEnrollments(ctx context.Context) {
	enrollments, err := ws.Store.ListEnrollmentsByStatus(ctx, models.WarmupStatusActive)
	if err != nil {
		ws.Logger.Printf("Error fetching active enrollments: %v", err)
		return
	}

	for i := range enrollments {
		e := &enrollments[i]
		sender, err := ws.Store.GetSender(ctx, e.SenderEmail)
		if err != nil {
			ws.Logger.Printf("Error loading sender %s: %v", e.SenderEmail, err)
			continue
		}
		if err := ws.Ramp.Tick(ctx, e, sender); err != nil {
			ws.Logger.Printf("Error ticking enrollment %d/%s: %v", e.CampaignID, e.SenderEmail, err)
		}
	}
}

// resetCampaignCounters zeroes campaign sent_today counters at UTC
// midnight. Campaign daily limits are account-level and keep a single
// clock, unlike sender counters which follow the sender's timezone.
func (ws *WarmupScheduler) resetCampaignCounters(ctx context.Context) {
	today := time.Now().UTC().Format(models.DateLayout)
	if ws.lastResetDay == today {
		return
	}
	if err := ws.Store.ResetCampaignsSentToday(ctx); err != nil {
		ws.Logger.Printf("Error resetting campaign sent counters: %v", err)
		return
	}
	ws.lastResetDay = today
	ws.Logger.Printf("Campaign sent counters reset for %s", today)
}

package controller

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"

	"mailwarm/models"
	"mailwarm/store"
	"mailwarm/utils"
)

const (
	ErrInvalidSenderEmail  = "invalid sender email"
	ErrStaleEventDate      = "event date must be the sender's current local day"
	ErrCampaignNotFound    = "campaign not found"
	ErrNoSendersInCampaign = "senderEmails is required"
)

const recomputeTimeout = 5 * time.Second

// EventController ingests engagement events from the sending and tracking
// pipelines and handles campaign launches.
type EventController struct {
	Store        store.Store
	Calculator   *utils.HealthScoreCalculator
	Orchestrator *utils.EnrollmentOrchestrator
	Logger       *log.Logger
	Now          func() time.Time
}

func NewEventController(st store.Store, calc *utils.HealthScoreCalculator, orchestrator *utils.EnrollmentOrchestrator, logger *log.Logger) *EventController {
	return &EventController{
		Store:        st,
		Calculator:   calc,
		Orchestrator: orchestrator,
		Logger:       logger,
		Now:          time.Now,
	}
}

// IngestEngagement records one engagement event against the sender's
// local-day counters. Ingest never blocks on scoring: the health score
// recompute runs asynchronously after the counters are durable.
//
// An explicit date must match the sender's current local day. Closed
// days are immutable, so late events are rejected rather than re-dated.
func (ec *EventController) IngestEngagement(c *fiber.Ctx) error {
	var input struct {
		SenderEmail string `json:"senderEmail" validate:"required,email"`
		Kind        string `json:"kind" validate:"required,engagement_kind"`
		Date        string `json:"date" validate:"counter_date"`
		CampaignID  uint   `json:"campaignId"`
		Count       int    `json:"count"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidRequestBody,
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if err := checkmail.ValidateFormat(input.SenderEmail); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidSenderEmail,
		})
	}

	kind := models.EngagementKind(input.Kind)
	count := input.Count
	if count <= 0 {
		count = 1
	}

	ctx := c.UserContext()
	now := ec.Now()

	sender, err := ec.Store.GetSender(ctx, input.SenderEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "sender not found",
			})
		}
		utils.LogError("engagement_ingest", err, map[string]interface{}{
			"sender_email": input.SenderEmail,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to record engagement",
		})
	}

	date := sender.LocalDate(now)
	if input.Date != "" && input.Date != date {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   ErrStaleEventDate,
		})
	}
	if err := ec.Store.AddEngagement(ctx, sender.Email, date, kind, count); err != nil {
		utils.LogError("engagement_ingest", err, map[string]interface{}{
			"sender_email": sender.Email,
			"kind":         string(kind),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to record engagement",
		})
	}

	if err := ec.Store.BumpEnrollmentEngagement(ctx, input.CampaignID, sender.Email, kind, now); err != nil {
		ec.Logger.Printf("Failed to bump enrollment counters for %s: %v", sender.Email, err)
	}

	switch kind {
	case models.EngagementSent:
		if input.CampaignID > 0 {
			if err := ec.Store.IncrCampaignSent(ctx, input.CampaignID, count); err != nil {
				ec.Logger.Printf("Failed to bump campaign %d sent counter: %v", input.CampaignID, err)
			}
		}
	case models.EngagementSpamReport:
		if err := ec.Orchestrator.HandleSpamReport(ctx, sender.Email); err != nil {
			ec.Logger.Printf("Spam anomaly handling failed for %s: %v", sender.Email, err)
		}
	case models.EngagementBounced:
		if input.CampaignID > 0 {
			ec.Orchestrator.NotifySendFailure(ctx, input.CampaignID, sender.Email)
		}
	}

	go ec.recomputeScore(sender.Email)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "engagement recorded",
	})
}

func (ec *EventController) recomputeScore(senderEmail string) {
	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()

	if _, err := ec.Calculator.Recompute(ctx, senderEmail); err != nil {
		utils.LogError("health_score_recompute", err, map[string]interface{}{
			"sender_email": senderEmail,
		})
	}
}

// LaunchCampaign marks the campaign as warming and enrolls every listed
// sender that needs warmup. Healthy and already-enrolled senders are
// skipped, not errors.
func (ec *EventController) LaunchCampaign(c *fiber.Ctx) error {
	campaignID, err := c.ParamsInt("id")
	if err != nil || campaignID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidCampaignID,
		})
	}

	var input struct {
		SenderEmails []string `json:"senderEmails" validate:"required,min=1,dive,email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidRequestBody,
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrNoSendersInCampaign,
		})
	}

	enrolled, err := ec.Orchestrator.EnrollCampaign(c.UserContext(), uint(campaignID), input.SenderEmails)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   ErrCampaignNotFound,
			})
		}
		utils.LogError("campaign_launch", err, map[string]interface{}{
			"campaign_id": campaignID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to launch campaign",
		})
	}

	utils.LogEvent("campaign_launched", map[string]interface{}{
		"campaign_id":    campaignID,
		"enrolled_count": len(enrolled),
	})

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "campaign launched",
		"enrolled": enrolled,
	})
}

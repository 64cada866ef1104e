package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"mailwarm/utils"
)

const (
	ErrInvalidCampaignID  = "invalid campaign ID"
	ErrInvalidRequestBody = "invalid request body"
	ErrEnrollmentMissing  = "warmup enrollment not found"
	ErrInvalidAction      = "invalid action"
	ErrValueRequired      = "value is required for adjust"
)

// WarmupController serves the warming dashboard's progress reads and the
// pause/resume/adjust controls.
type WarmupController struct {
	Aggregator   *utils.ProgressAggregator
	Orchestrator *utils.EnrollmentOrchestrator
	Quota        *utils.QuotaEnforcer
	Logger       *log.Logger
}

func NewWarmupController(aggregator *utils.ProgressAggregator, orchestrator *utils.EnrollmentOrchestrator, quota *utils.QuotaEnforcer, logger *log.Logger) *WarmupController {
	return &WarmupController{
		Aggregator:   aggregator,
		Orchestrator: orchestrator,
		Quota:        quota,
		Logger:       logger,
	}
}

// GetProgress returns warming progress for all campaigns, or for one
// campaign when ?campaign_id= is given.
func (wc *WarmupController) GetProgress(c *fiber.Ctx) error {
	if campaignID := c.QueryInt("campaign_id"); campaignID > 0 {
		view, err := wc.Aggregator.CampaignProgress(c.UserContext(), uint(campaignID))
		if err != nil {
			wc.Logger.Printf("Failed to build campaign %d progress: %v", campaignID, err)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "campaign not found",
			})
		}
		return c.JSON(utils.SuccessResponse(view))
	}

	progress, err := wc.Aggregator.Progress(c.UserContext())
	if err != nil {
		wc.Logger.Printf("Failed to build warming progress: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to fetch warming progress",
		})
	}
	return c.JSON(utils.SuccessResponse(progress))
}

// UpdateProgress applies a manual control to one enrollment. The call is
// idempotent: repeating an identical pause or resume succeeds without
// effect.
func (wc *WarmupController) UpdateProgress(c *fiber.Ctx) error {
	var input struct {
		CampaignID  uint   `json:"campaignId" validate:"required"`
		SenderEmail string `json:"senderEmail" validate:"required,email"`
		Action      string `json:"action" validate:"required,oneof=pause resume adjust"`
		Value       *int   `json:"value"`
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

	ctx := c.UserContext()

	var err error
	switch input.Action {
	case "pause":
		err = wc.Orchestrator.Pause(ctx, input.CampaignID, input.SenderEmail)
	case "resume":
		err = wc.Orchestrator.Resume(ctx, input.CampaignID, input.SenderEmail)
	case "adjust":
		if input.Value == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   ErrValueRequired,
			})
		}
		err = wc.Orchestrator.Adjust(ctx, input.CampaignID, input.SenderEmail, *input.Value)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidAction,
		})
	}

	if err != nil {
		return wc.controlError(c, input.Action, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "warming campaign " + input.Action + " completed successfully",
	})
}

func (wc *WarmupController) controlError(c *fiber.Ctx, action string, err error) error {
	switch {
	case errors.Is(err, utils.ErrEnrollmentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   ErrEnrollmentMissing,
		})
	case errors.Is(err, utils.ErrInvalidEnrollmentState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	wc.Logger.Printf("Control action %s failed: %v", action, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "failed to update warming progress",
	})
}

// GetEnrollment returns one enrollment's current state.
func (wc *WarmupController) GetEnrollment(c *fiber.Ctx) error {
	campaignID, err := c.ParamsInt("campaignID")
	if err != nil || campaignID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidCampaignID,
		})
	}
	senderEmail := c.Params("email")

	e, err := wc.Orchestrator.Store.GetEnrollment(c.UserContext(), uint(campaignID), senderEmail)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   ErrEnrollmentMissing,
		})
	}
	return c.JSON(utils.SuccessResponse(e))
}

// ReserveQuota is the per-send hot path used by the sending workers: one
// atomic slot reservation against today's effective ceiling.
func (wc *WarmupController) ReserveQuota(c *fiber.Ctx) error {
	var input struct {
		CampaignID  uint   `json:"campaignId" validate:"required"`
		SenderEmail string `json:"senderEmail" validate:"required,email"`
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

	reservation, err := wc.Quota.TryReserve(c.UserContext(), input.CampaignID, input.SenderEmail)
	if err != nil {
		var quotaErr *utils.QuotaExceededError
		switch {
		case errors.As(err, &quotaErr):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":  false,
				"error":    "quota exceeded",
				"bound_by": quotaErr.BoundBy,
			})
		case errors.Is(err, utils.ErrEnrollmentNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   ErrEnrollmentMissing,
			})
		}
		wc.Logger.Printf("Quota reservation failed for %s (campaign %d): %v", input.SenderEmail, input.CampaignID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to reserve quota",
		})
	}

	return c.JSON(utils.SuccessResponse(reservation))
}

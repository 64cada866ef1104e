package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"mailwarm/config"
	controller "mailwarm/controllers"
	"mailwarm/middleware"
	"mailwarm/store"
	"mailwarm/utils"
)

func SetupAPIRoutes(app *fiber.App, st store.Store) {
	warmupLogger := log.New(os.Stdout, "WARMUP: ", log.Ldate|log.Ltime|log.Lshortfile)
	eventLogger := log.New(os.Stdout, "EVENT: ", log.Ldate|log.Ltime|log.Lshortfile)

	orchestrator := utils.NewEnrollmentOrchestrator(
		st, warmupLogger,
		config.AppConfig.Warmup.EnrollmentThreshold,
		config.AppConfig.Warmup.TargetHealthScore,
	)
	aggregator := utils.NewProgressAggregator(st, warmupLogger)
	quota := utils.NewQuotaEnforcer(st, warmupLogger)
	calculator := utils.NewHealthScoreCalculator(st, eventLogger)

	warmupController := controller.NewWarmupController(aggregator, orchestrator, quota, warmupLogger)
	eventController := controller.NewEventController(st, calculator, orchestrator, eventLogger)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Warmup progress routes
	warmup := api.Group("/warmup")
	warmup.Get("/progress", warmupController.GetProgress)
	warmup.Post("/progress", warmupController.UpdateProgress)
	warmup.Get("/enrollments/:campaignID/:email", warmupController.GetEnrollment)
	warmup.Post("/reserve", warmupController.ReserveQuota)

	// Campaign launch
	api.Post("/campaigns/:id/launch", eventController.LaunchCampaign)

	// Engagement ingest with rate limiting
	events := api.Group("/events", middleware.IngestRateLimiter())
	events.Post("/engagement", eventController.IngestEngagement)

	// WebSocket route for warmup progress
	app.Get("/api/v1/warmup/progress/ws", websocket.New(controller.HandleWarmupProgressWS(aggregator)))

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, st store.Store) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAPIRoutes(app, st)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"mailwarm/config"
	"mailwarm/middleware"
	"mailwarm/routes"
	"mailwarm/store"
	"mailwarm/utils"
	"mailwarm/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "WARMUP: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	st := store.NewGormStore(config.DB)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the ramp scheduler
	scheduler := worker.NewWarmupScheduler(st, logger, config.AppConfig.Warmup.TickInterval)
	go scheduler.Start(ctx)

	// Start the anomaly sweep
	anomalyLogger := log.New(os.Stdout, "ANOMALY: ", log.LstdFlags)
	orchestrator := utils.NewEnrollmentOrchestrator(
		st, anomalyLogger,
		config.AppConfig.Warmup.EnrollmentThreshold,
		config.AppConfig.Warmup.TargetHealthScore,
	)
	anomalyWorker := worker.NewAnomalyWorker(orchestrator, anomalyLogger, config.AppConfig.Warmup.AnomalyInterval)
	go anomalyWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, st)

	// Shut the workers down on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Println("Shutdown signal received")
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

package worker

import (
	"context"
	"log"
	"time"

	"mailwarm/utils"
)

// AnomalyWorker periodically sweeps active enrollments for spam-report
// anomalies. Most anomalies are caught inline at ingest time; the sweep
// is the backstop for events that arrived while an enrollment was being
// written.
type AnomalyWorker struct {
	Orchestrator *utils.EnrollmentOrchestrator
	Logger       *log.Logger

	interval time.Duration
}

func NewAnomalyWorker(orchestrator *utils.EnrollmentOrchestrator, logger *log.Logger, interval time.Duration) *AnomalyWorker {
	return &AnomalyWorker{
		Orchestrator: orchestrator,
		Logger:       logger,
		interval:     interval,
	}
}

func (aw *AnomalyWorker) Start(ctx context.Context) {
	time.Sleep(10 * time.Second)

	aw.Logger.Println("Anomaly worker started")

	ticker := time.NewTicker(aw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			aw.Logger.Println("Anomaly worker shutting down...")
			return
		case <-ticker.C:
			if err := aw.Orchestrator.EvaluateAnomalies(ctx); err != nil {
				aw.Logger.Printf("Anomaly sweep failed: %v", err)
			}
		}
	}
}

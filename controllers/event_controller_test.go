package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"mailwarm/models"
	"mailwarm/store"
	"mailwarm/utils"
)

func newIngestApp(st *store.MemoryStore) *fiber.App {
	logger := log.New(io.Discard, "", 0)
	ec := NewEventController(
		st,
		utils.NewHealthScoreCalculator(st, logger),
		utils.NewEnrollmentOrchestrator(st, logger, 80, 90),
		logger,
	)
	ec.Now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	app := fiber.New()
	app.Post("/events/engagement", ec.IngestEngagement)
	return app
}

func postEngagement(t *testing.T, app *fiber.App, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", "/events/engagement", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestIngestEngagementRecordsCounter(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", Timezone: "UTC", CurrentHealthScore: 40})
	app := newIngestApp(st)

	status, out := postEngagement(t, app, map[string]interface{}{
		"senderEmail": "a@b.co",
		"kind":        "opened",
		"count":       3,
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body %v", status, out)
	}

	counters, err := st.CountersSince(context.Background(), "a@b.co", "2026-03-10")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if len(counters) != 1 || counters[0].Opened != 3 {
		t.Fatalf("expected one counter with 3 opens, got %+v", counters)
	}
}

func TestIngestEngagementRejectsStaleDate(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", Timezone: "UTC", CurrentHealthScore: 40})
	app := newIngestApp(st)

	// Yesterday's counters are closed. A late event must not re-open them.
	status, out := postEngagement(t, app, map[string]interface{}{
		"senderEmail": "a@b.co",
		"kind":        "opened",
		"date":        "2026-03-09",
	})
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %v", status, out)
	}
	if out["error"] != ErrStaleEventDate {
		t.Fatalf("error = %v", out["error"])
	}

	counters, err := st.CountersSince(context.Background(), "a@b.co", "2026-03-01")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if len(counters) != 0 {
		t.Fatalf("rejected event must not write counters, got %+v", counters)
	}
}

func TestIngestEngagementAcceptsMatchingDate(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", Timezone: "America/New_York", CurrentHealthScore: 40})
	app := newIngestApp(st)

	// 12:00 UTC on March 10 is still March 10 in New York.
	status, out := postEngagement(t, app, map[string]interface{}{
		"senderEmail": "a@b.co",
		"kind":        "replied",
		"date":        "2026-03-10",
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body %v", status, out)
	}
}

func TestIngestEngagementRejectsUnknownKind(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", Timezone: "UTC", CurrentHealthScore: 40})
	app := newIngestApp(st)

	status, _ := postEngagement(t, app, map[string]interface{}{
		"senderEmail": "a@b.co",
		"kind":        "forwarded",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
}

func TestIngestEngagementRejectsMalformedDate(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedSender(models.SenderIdentity{Email: "a@b.co", Timezone: "UTC", CurrentHealthScore: 40})
	app := newIngestApp(st)

	status, _ := postEngagement(t, app, map[string]interface{}{
		"senderEmail": "a@b.co",
		"kind":        "opened",
		"date":        "03/10/2026",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
}

func TestIngestEngagementUnknownSender(t *testing.T) {
	st := store.NewMemoryStore()
	app := newIngestApp(st)

	status, _ := postEngagement(t, app, map[string]interface{}{
		"senderEmail": "nobody@b.co",
		"kind":        "opened",
	})
	if status != fiber.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
}

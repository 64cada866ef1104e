package controller

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"mailwarm/utils"
)

const wsPushInterval = 15 * time.Second

// HandleWarmupProgressWS streams warming progress to the dashboard. The
// client subscribes once and receives a fresh snapshot on every push
// interval until it disconnects.
func HandleWarmupProgressWS(aggregator *utils.ProgressAggregator) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		var input struct {
			Action     string `json:"action"`
			CampaignID uint   `json:"campaignId"`
		}
		if err := c.ReadJSON(&input); err != nil {
			log.Printf("Error reading JSON: %v", err)
			return
		}
		if input.Action != "subscribe" {
			return
		}

		if err := pushProgress(c, aggregator, input.CampaignID); err != nil {
			return
		}

		ticker := time.NewTicker(wsPushInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := pushProgress(c, aggregator, input.CampaignID); err != nil {
				return
			}
		}
	}
}

func pushProgress(c *websocket.Conn, aggregator *utils.ProgressAggregator, campaignID uint) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var payload interface{}
	var err error
	if campaignID > 0 {
		payload, err = aggregator.CampaignProgress(ctx, campaignID)
	} else {
		payload, err = aggregator.Progress(ctx)
	}
	if err != nil {
		log.Printf("Error building warming progress: %v", err)
		return c.WriteJSON(map[string]interface{}{
			"success": false,
			"error":   "failed to fetch warming progress",
		})
	}

	if err := c.WriteJSON(map[string]interface{}{
		"success": true,
		"data":    payload,
	}); err != nil {
		log.Printf("Error writing JSON: %v", err)
		return err
	}
	return nil
}

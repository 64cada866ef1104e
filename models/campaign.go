package models

import "gorm.io/gorm"

// Campaign is the engine's read-mostly view of a campaign. Campaign CRUD
// lives in the console service; the warmup engine consumes the automation
// settings and maintains the daily send counter used for effective-quota
// computation.
type Campaign struct {
	gorm.Model
	UserID uint   `gorm:"index" json:"user_id"`
	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"default:'draft'" json:"status"` // draft, warming, active, paused, completed

	// ========= Automation Settings (owned by the console) =========
	DailyLimit   int  `gorm:"default:1000" json:"daily_limit"`
	StopOnReply  bool `gorm:"default:true" json:"stop_on_reply"`
	OpenTracking bool `gorm:"default:true" json:"open_tracking"`

	// SentToday counts all campaign sends for the current UTC day,
	// warmup or not. The difference DailyLimit - SentToday is the
	// campaign-level headroom the quota enforcer composes with.
	SentToday int `gorm:"default:0" json:"sent_today"`
}

// CampaignStatusWarming marks campaigns whose senders are being ramped.
const CampaignStatusWarming = "warming"

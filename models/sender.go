package models

import (
	"time"

	"gorm.io/gorm"
)

// SenderIdentity represents an email address capable of sending, together
// with the deliverability state the warmup engine maintains for it.
type SenderIdentity struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	// Basic identification
	Email    string `gorm:"not null;uniqueIndex" json:"email"`
	FromName string `json:"from_name"`
	DomainID uint   `gorm:"index" json:"domain_id"`

	// ========= Deliverability State =========
	CurrentHealthScore int        `gorm:"default:50" json:"current_health_score"`
	LastScoredAt       *time.Time `json:"last_scored_at"`

	// DailySendCap is a hard ceiling independent of warmup ramp targets.
	DailySendCap int `gorm:"default:500" json:"daily_send_cap"`

	// Timezone controls where this sender's day boundary falls. Counters
	// reset and phase transitions apply at local midnight.
	Timezone string `gorm:"default:'UTC'" json:"timezone"`

	// Enabled is a soft switch; senders referenced by history are never
	// deleted, only disabled.
	Enabled   bool    `gorm:"default:true" json:"enabled"`
	LastError *string `json:"last_error"`
}

// Location resolves the sender's configured timezone, falling back to UTC
// when the name is empty or unknown.
func (s *SenderIdentity) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDate formats t as a calendar date in the sender's timezone.
func (s *SenderIdentity) LocalDate(t time.Time) string {
	return t.In(s.Location()).Format(DateLayout)
}

// SenderScoreHistory is an append-only audit trail of computed health
// scores, used by the dashboard graph.
type SenderScoreHistory struct {
	gorm.Model
	SenderEmail string    `gorm:"not null;index" json:"sender_email"`
	Score       int       `gorm:"not null" json:"score"`
	ComputedAt  time.Time `gorm:"not null" json:"computed_at"`
}

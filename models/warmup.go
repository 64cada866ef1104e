package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// WarmupPhase is the ramp stage of an enrollment. Values match the phase
// numbers shown on the warming dashboard.
type WarmupPhase int

const (
	PhaseFoundation WarmupPhase = iota + 1 // days 1-7, low volume
	PhaseEngagement                        // days 8-21
	PhaseScaleUp                           // days 22-35, ramp to send cap
)

func (p WarmupPhase) String() string {
	switch p {
	case PhaseFoundation:
		return "Foundation"
	case PhaseEngagement:
		return "Engagement"
	case PhaseScaleUp:
		return "Scale-Up"
	default:
		return "Unknown"
	}
}

func (p WarmupPhase) Valid() bool {
	return p >= PhaseFoundation && p <= PhaseScaleUp
}

// WarmupStatus is the lifecycle state of an enrollment.
type WarmupStatus string

const (
	WarmupStatusActive    WarmupStatus = "active"
	WarmupStatusPaused    WarmupStatus = "paused"
	WarmupStatusCompleted WarmupStatus = "completed"
	WarmupStatusFailed    WarmupStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
// Completed and failed enrollments require manual re-enrollment.
func (s WarmupStatus) Terminal() bool {
	return s == WarmupStatusCompleted || s == WarmupStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s WarmupStatus) CanTransitionTo(next WarmupStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case WarmupStatusActive:
		return next == WarmupStatusPaused || next == WarmupStatusCompleted || next == WarmupStatusFailed
	case WarmupStatusPaused:
		return next == WarmupStatusActive || next == WarmupStatusFailed
	default:
		return false
	}
}

// WarmupEnrollment ties one sender to one campaign's warmup progress. It
// is the unit the scheduler ticks and the quota enforcer reserves against.
type WarmupEnrollment struct {
	gorm.Model
	CampaignID  uint   `gorm:"not null;index;uniqueIndex:idx_warmup_campaign_sender" json:"campaign_id"`
	SenderEmail string `gorm:"not null;uniqueIndex:idx_warmup_campaign_sender" json:"sender_email"`

	// ========= Ramp Position =========
	Phase      WarmupPhase `gorm:"default:1" json:"phase"`
	DayInPhase int         `gorm:"default:1" json:"day_in_phase"`
	TotalDays  int         `gorm:"default:1" json:"total_days"`

	// DailyTarget is today's send quota, derived from phase and day.
	// Invariant: EmailsSentToday <= DailyTarget at all times.
	DailyTarget int `gorm:"not null" json:"daily_target"`

	// ========= Today's Counters (reset at the sender's local midnight) =========
	EmailsSentToday int `gorm:"default:0" json:"emails_sent_today"`
	OpensToday      int `gorm:"default:0" json:"opens_today"`
	RepliesToday    int `gorm:"default:0" json:"replies_today"`

	// ========= Health Goals =========
	InitialHealthScore int `gorm:"default:0" json:"initial_health_score"`
	TargetHealthScore  int `gorm:"default:90" json:"target_health_score"`

	// ========= Lifecycle =========
	Status WarmupStatus `gorm:"default:'active';index" json:"status"`

	// Stalled means the phase's day budget ran out without meeting the
	// health threshold to advance; the ramp holds instead of forcing.
	Stalled bool `gorm:"default:false" json:"stalled"`

	// ActionRequired is raised by anomaly handling (spam reports,
	// repeated failures) and cleared on operator resume.
	ActionRequired bool `gorm:"default:false" json:"action_required"`

	ConsecutiveFailedDays int `gorm:"default:0" json:"consecutive_failed_days"`

	// LastTransitionDate records the sender-local calendar date of the
	// last applied daily transition, so ticks are idempotent within a day.
	LastTransitionDate string     `json:"last_transition_date"`
	LastActivityAt     *time.Time `json:"last_activity_at"`
	PausedAt           *time.Time `json:"paused_at"`
}

// ProgressPercentage derives the dashboard progress bar value from the
// sender's current health score, clamped to [0,100].
func (e *WarmupEnrollment) ProgressPercentage(currentHealthScore int) int {
	if e.TargetHealthScore <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(currentHealthScore) / float64(e.TargetHealthScore)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

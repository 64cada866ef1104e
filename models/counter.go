package models

import "gorm.io/gorm"

// DateLayout is the calendar-date format used for day-keyed records.
const DateLayout = "2006-01-02"

// EngagementKind identifies a per-message event reported by the sending
// and tracking subsystems.
type EngagementKind string

const (
	EngagementSent       EngagementKind = "sent"
	EngagementDelivered  EngagementKind = "delivered"
	EngagementBounced    EngagementKind = "bounced"
	EngagementOpened     EngagementKind = "opened"
	EngagementReplied    EngagementKind = "replied"
	EngagementSpamReport EngagementKind = "spam_report"
)

func (k EngagementKind) Valid() bool {
	switch k {
	case EngagementSent, EngagementDelivered, EngagementBounced,
		EngagementOpened, EngagementReplied, EngagementSpamReport:
		return true
	}
	return false
}

// DailyCounter accumulates engagement events for one sender on one
// sender-local calendar date. The row is append-only for the current day
// and immutable once the day rolls over; it is the serialization boundary
// for concurrent counter updates.
type DailyCounter struct {
	gorm.Model
	SenderEmail string `gorm:"not null;uniqueIndex:idx_counter_sender_date" json:"sender_email"`
	Date        string `gorm:"not null;uniqueIndex:idx_counter_sender_date" json:"date"`

	Sent        int `gorm:"default:0" json:"sent"`
	Delivered   int `gorm:"default:0" json:"delivered"`
	Bounced     int `gorm:"default:0" json:"bounced"`
	Opened      int `gorm:"default:0" json:"opened"`
	Replied     int `gorm:"default:0" json:"replied"`
	SpamReports int `gorm:"default:0" json:"spam_reports"`
}

// Add bumps the counter column matching kind by n.
func (c *DailyCounter) Add(kind EngagementKind, n int) {
	switch kind {
	case EngagementSent:
		c.Sent += n
	case EngagementDelivered:
		c.Delivered += n
	case EngagementBounced:
		c.Bounced += n
	case EngagementOpened:
		c.Opened += n
	case EngagementReplied:
		c.Replied += n
	case EngagementSpamReport:
		c.SpamReports += n
	}
}

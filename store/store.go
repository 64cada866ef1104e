package store

import (
	"context"
	"errors"
	"time"

	"mailwarm/models"
)

var (
	// ErrNotFound is returned for lookups that match no record.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an insert collides with an existing
	// row, e.g. the (campaign_id, sender_email) enrollment index.
	ErrConflict = errors.New("record already exists")
)

// Store is the persistence boundary of the warmup engine. The production
// implementation is backed by Postgres through GORM; MemoryStore backs
// the unit tests.
type Store interface {
	// ========= Senders =========
	GetSender(ctx context.Context, email string) (*models.SenderIdentity, error)
	UpdateSenderScore(ctx context.Context, email string, score int, at time.Time) error
	AppendScoreHistory(ctx context.Context, row *models.SenderScoreHistory) error

	// ========= Campaigns =========
	GetCampaign(ctx context.Context, id uint) (*models.Campaign, error)
	ListCampaignsByIDs(ctx context.Context, ids []uint) ([]models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uint, status string) error
	IncrCampaignSent(ctx context.Context, id uint, n int) error
	ResetCampaignsSentToday(ctx context.Context) error

	// ========= Enrollments =========
	CreateEnrollment(ctx context.Context, e *models.WarmupEnrollment) error
	SaveEnrollment(ctx context.Context, e *models.WarmupEnrollment) error
	GetEnrollment(ctx context.Context, campaignID uint, senderEmail string) (*models.WarmupEnrollment, error)
	ListEnrollmentsByCampaign(ctx context.Context, campaignID uint) ([]models.WarmupEnrollment, error)
	ListEnrollmentsByStatus(ctx context.Context, status models.WarmupStatus) ([]models.WarmupEnrollment, error)
	ListEnrollmentsBySender(ctx context.Context, senderEmail string) ([]models.WarmupEnrollment, error)
	ListEnrolledCampaignIDs(ctx context.Context) ([]uint, error)

	// ReserveSend atomically increments emails_sent_today for the
	// (campaignID, senderEmail) enrollment iff the enrollment is active
	// and the counter is below limit. It must be a single conditional
	// update, never a read-then-write pair; the boolean reports whether
	// the reservation was granted.
	ReserveSend(ctx context.Context, campaignID uint, senderEmail string, limit int) (bool, error)

	// BumpEnrollmentEngagement increments today's open/reply counters on
	// the sender's active enrollments. A non-zero campaignID scopes the
	// bump to that campaign's enrollment; zero means all of the sender's.
	// Other kinds are a no-op.
	BumpEnrollmentEngagement(ctx context.Context, campaignID uint, senderEmail string, kind models.EngagementKind, at time.Time) error

	// ========= Daily counters =========
	AddEngagement(ctx context.Context, senderEmail, date string, kind models.EngagementKind, n int) error
	CountersSince(ctx context.Context, senderEmail string, since string) ([]models.DailyCounter, error)
}

// enrollmentEngagementColumn maps an engagement kind to the enrollment
// counter it feeds, or "" when the kind does not touch enrollments.
func enrollmentEngagementColumn(kind models.EngagementKind) string {
	switch kind {
	case models.EngagementOpened:
		return "opens_today"
	case models.EngagementReplied:
		return "replies_today"
	}
	return ""
}

// counterColumn maps an engagement kind to its daily-counter column.
func counterColumn(kind models.EngagementKind) string {
	switch kind {
	case models.EngagementSent:
		return "sent"
	case models.EngagementDelivered:
		return "delivered"
	case models.EngagementBounced:
		return "bounced"
	case models.EngagementOpened:
		return "opened"
	case models.EngagementReplied:
		return "replied"
	case models.EngagementSpamReport:
		return "spam_reports"
	}
	return ""
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mailwarm/models"
)

// GormStore is the Postgres-backed Store used in production.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

func (s *GormStore) GetSender(ctx context.Context, email string) (*models.SenderIdentity, error) {
	var sender models.SenderIdentity
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&sender).Error; err != nil {
		return nil, translateErr(err)
	}
	return &sender, nil
}

func (s *GormStore) UpdateSenderScore(ctx context.Context, email string, score int, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.SenderIdentity{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"current_health_score": score,
			"last_scored_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AppendScoreHistory(ctx context.Context, row *models.SenderScoreHistory) error {
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *GormStore) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &campaign, nil
}

func (s *GormStore) ListCampaignsByIDs(ctx context.Context, ids []uint) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	if len(ids) == 0 {
		return campaigns, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&campaigns).Error
	return campaigns, err
}

func (s *GormStore) UpdateCampaignStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) IncrCampaignSent(ctx context.Context, id uint, n int) error {
	return s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("sent_today", gorm.Expr("sent_today + ?", n)).Error
}

func (s *GormStore) ResetCampaignsSentToday(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("sent_today > 0").
		Update("sent_today", 0).Error
}

func (s *GormStore) CreateEnrollment(ctx context.Context, e *models.WarmupEnrollment) error {
	return translateErr(s.db.WithContext(ctx).Create(e).Error)
}

func (s *GormStore) SaveEnrollment(ctx context.Context, e *models.WarmupEnrollment) error {
	return s.db.WithContext(ctx).Save(e).Error
}

func (s *GormStore) GetEnrollment(ctx context.Context, campaignID uint, senderEmail string) (*models.WarmupEnrollment, error) {
	var e models.WarmupEnrollment
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND sender_email = ?", campaignID, senderEmail).
		First(&e).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &e, nil
}

func (s *GormStore) ListEnrollmentsByCampaign(ctx context.Context, campaignID uint) ([]models.WarmupEnrollment, error) {
	var out []models.WarmupEnrollment
	err := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Find(&out).Error
	return out, err
}

func (s *GormStore) ListEnrollmentsByStatus(ctx context.Context, status models.WarmupStatus) ([]models.WarmupEnrollment, error) {
	var out []models.WarmupEnrollment
	err := s.db.WithContext(ctx).Where("status = ?", status).Find(&out).Error
	return out, err
}

func (s *GormStore) ListEnrollmentsBySender(ctx context.Context, senderEmail string) ([]models.WarmupEnrollment, error) {
	var out []models.WarmupEnrollment
	err := s.db.WithContext(ctx).Where("sender_email = ?", senderEmail).Find(&out).Error
	return out, err
}

func (s *GormStore) ListEnrolledCampaignIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.WarmupEnrollment{}).
		Distinct("campaign_id").
		Pluck("campaign_id", &ids).Error
	return ids, err
}

// ReserveSend is the quota hot path: one conditional UPDATE whose WHERE
// clause carries both the active-status check and the bound, so two
// workers can never both pass a stale read and exceed the target.
func (s *GormStore) ReserveSend(ctx context.Context, campaignID uint, senderEmail string, limit int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.WarmupEnrollment{}).
		Where("campaign_id = ? AND sender_email = ? AND status = ? AND emails_sent_today < ?",
			campaignID, senderEmail, models.WarmupStatusActive, limit).
		Update("emails_sent_today", gorm.Expr("emails_sent_today + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) BumpEnrollmentEngagement(ctx context.Context, campaignID uint, senderEmail string, kind models.EngagementKind, at time.Time) error {
	col := enrollmentEngagementColumn(kind)
	if col == "" {
		return nil
	}
	q := s.db.WithContext(ctx).Model(&models.WarmupEnrollment{}).
		Where("sender_email = ? AND status = ?", senderEmail, models.WarmupStatusActive)
	if campaignID > 0 {
		q = q.Where("campaign_id = ?", campaignID)
	}
	return q.
		Updates(map[string]interface{}{
			col:                gorm.Expr(fmt.Sprintf("%s + ?", col), 1),
			"last_activity_at": at,
		}).Error
}

func (s *GormStore) AddEngagement(ctx context.Context, senderEmail, date string, kind models.EngagementKind, n int) error {
	col := counterColumn(kind)
	if col == "" {
		return fmt.Errorf("unknown engagement kind %q", kind)
	}
	row := models.DailyCounter{SenderEmail: senderEmail, Date: date}
	row.Add(kind, n)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sender_email"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			col: gorm.Expr(fmt.Sprintf("daily_counters.%s + ?", col), n),
		}),
	}).Create(&row).Error
}

func (s *GormStore) CountersSince(ctx context.Context, senderEmail string, since string) ([]models.DailyCounter, error) {
	var out []models.DailyCounter
	err := s.db.WithContext(ctx).
		Where("sender_email = ? AND date >= ?", senderEmail, since).
		Order("date ASC").
		Find(&out).Error
	return out, err
}

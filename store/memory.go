package store

import (
	"context"
	"sync"
	"time"

	"mailwarm/models"
)

// MemoryStore is an in-memory Store for unit tests. A single mutex
// serializes every operation, which makes ReserveSend a true atomic
// check-and-increment like its SQL counterpart.
type MemoryStore struct {
	mu sync.Mutex

	senders     map[string]models.SenderIdentity
	campaigns   map[uint]models.Campaign
	enrollments map[enrollmentKey]models.WarmupEnrollment
	counters    map[counterKey]models.DailyCounter
	history     []models.SenderScoreHistory

	nextID uint
}

type enrollmentKey struct {
	campaignID  uint
	senderEmail string
}

type counterKey struct {
	senderEmail string
	date        string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		senders:     make(map[string]models.SenderIdentity),
		campaigns:   make(map[uint]models.Campaign),
		enrollments: make(map[enrollmentKey]models.WarmupEnrollment),
		counters:    make(map[counterKey]models.DailyCounter),
	}
}

// SeedSender and SeedCampaign install fixtures for tests.
func (s *MemoryStore) SeedSender(sender models.SenderIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders[sender.Email] = sender
}

func (s *MemoryStore) SeedCampaign(campaign models.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.ID] = campaign
}

func (s *MemoryStore) GetSender(_ context.Context, email string) (*models.SenderIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sender, ok := s.senders[email]
	if !ok {
		return nil, ErrNotFound
	}
	out := sender
	return &out, nil
}

func (s *MemoryStore) UpdateSenderScore(_ context.Context, email string, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sender, ok := s.senders[email]
	if !ok {
		return ErrNotFound
	}
	sender.CurrentHealthScore = score
	sender.LastScoredAt = &at
	s.senders[email] = sender
	return nil
}

func (s *MemoryStore) AppendScoreHistory(_ context.Context, row *models.SenderScoreHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *row)
	return nil
}

// ScoreHistory returns the recorded audit rows for assertions.
func (s *MemoryStore) ScoreHistory() []models.SenderScoreHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SenderScoreHistory, len(s.history))
	copy(out, s.history)
	return out
}

func (s *MemoryStore) GetCampaign(_ context.Context, id uint) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := campaign
	return &out, nil
}

func (s *MemoryStore) ListCampaignsByIDs(_ context.Context, ids []uint) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Campaign
	for _, id := range ids {
		if campaign, ok := s.campaigns[id]; ok {
			out = append(out, campaign)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateCampaignStatus(_ context.Context, id uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	campaign.Status = status
	s.campaigns[id] = campaign
	return nil
}

func (s *MemoryStore) IncrCampaignSent(_ context.Context, id uint, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	campaign.SentToday += n
	s.campaigns[id] = campaign
	return nil
}

func (s *MemoryStore) ResetCampaignsSentToday(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, campaign := range s.campaigns {
		campaign.SentToday = 0
		s.campaigns[id] = campaign
	}
	return nil
}

func (s *MemoryStore) CreateEnrollment(_ context.Context, e *models.WarmupEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey{e.CampaignID, e.SenderEmail}
	if _, exists := s.enrollments[key]; exists {
		return ErrConflict
	}
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	}
	s.enrollments[key] = *e
	return nil
}

func (s *MemoryStore) SaveEnrollment(_ context.Context, e *models.WarmupEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[enrollmentKey{e.CampaignID, e.SenderEmail}] = *e
	return nil
}

func (s *MemoryStore) GetEnrollment(_ context.Context, campaignID uint, senderEmail string) (*models.WarmupEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentKey{campaignID, senderEmail}]
	if !ok {
		return nil, ErrNotFound
	}
	out := e
	return &out, nil
}

func (s *MemoryStore) ListEnrollmentsByCampaign(_ context.Context, campaignID uint) ([]models.WarmupEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WarmupEnrollment
	for key, e := range s.enrollments {
		if key.campaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListEnrollmentsByStatus(_ context.Context, status models.WarmupStatus) ([]models.WarmupEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WarmupEnrollment
	for _, e := range s.enrollments {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListEnrollmentsBySender(_ context.Context, senderEmail string) ([]models.WarmupEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WarmupEnrollment
	for key, e := range s.enrollments {
		if key.senderEmail == senderEmail {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListEnrolledCampaignIDs(_ context.Context) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uint]struct{})
	var ids []uint
	for key := range s.enrollments {
		if _, ok := seen[key.campaignID]; !ok {
			seen[key.campaignID] = struct{}{}
			ids = append(ids, key.campaignID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) ReserveSend(_ context.Context, campaignID uint, senderEmail string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey{campaignID, senderEmail}
	e, ok := s.enrollments[key]
	if !ok {
		return false, nil
	}
	if e.Status != models.WarmupStatusActive || e.EmailsSentToday >= limit {
		return false, nil
	}
	e.EmailsSentToday++
	s.enrollments[key] = e
	return true, nil
}

func (s *MemoryStore) BumpEnrollmentEngagement(_ context.Context, campaignID uint, senderEmail string, kind models.EngagementKind, at time.Time) error {
	if enrollmentEngagementColumn(kind) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.enrollments {
		if key.senderEmail != senderEmail || e.Status != models.WarmupStatusActive {
			continue
		}
		if campaignID > 0 && key.campaignID != campaignID {
			continue
		}
		switch kind {
		case models.EngagementOpened:
			e.OpensToday++
		case models.EngagementReplied:
			e.RepliesToday++
		}
		ts := at
		e.LastActivityAt = &ts
		s.enrollments[key] = e
	}
	return nil
}

func (s *MemoryStore) AddEngagement(_ context.Context, senderEmail, date string, kind models.EngagementKind, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{senderEmail, date}
	counter, ok := s.counters[key]
	if !ok {
		counter = models.DailyCounter{SenderEmail: senderEmail, Date: date}
	}
	counter.Add(kind, n)
	s.counters[key] = counter
	return nil
}

func (s *MemoryStore) CountersSince(_ context.Context, senderEmail string, since string) ([]models.DailyCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DailyCounter
	for key, counter := range s.counters {
		if key.senderEmail == senderEmail && key.date >= since {
			out = append(out, counter)
		}
	}
	return out, nil
}

package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
)

const noticeEntity = "notice"

// NotificationService keeps the unread notice counter of this console instance.
type NotificationService struct {
	mu     sync.Mutex
	unread int
	recent []models.NoticeNotification
	keep   int
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService constructs the counter, remembering up to keep recent notices.
func NewNotificationService(keep int, logger *zap.Logger) *NotificationService {
	if keep <= 0 {
		keep = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{keep: keep, logger: logger, now: time.Now}
}

// HandleRecordCreated is the record.created subscriber; only notices count.
func (s *NotificationService) HandleRecordCreated(_ context.Context, event events.Event) error {
	if event.Entity != noticeEntity {
		return nil
	}
	item := models.NoticeNotification{RecordID: event.RecordID, CreatedAt: event.Published}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	switch rec := event.Payload.(type) {
	case models.Record:
		item.Title = rec.Values.Get("title").String()
	case *models.Record:
		if rec != nil {
			item.Title = rec.Values.Get("title").String()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread++
	s.recent = append([]models.NoticeNotification{item}, s.recent...)
	if len(s.recent) > s.keep {
		s.recent = s.recent[:s.keep]
	}
	s.logger.Debug("notice notification queued", zap.String("record_id", event.RecordID), zap.Int("unread", s.unread))
	return nil
}

// Summary returns the current counter.
func (s *NotificationService) Summary() models.NotificationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent := make([]models.NoticeNotification, len(s.recent))
	copy(recent, s.recent)
	return models.NotificationSummary{Unread: s.unread, Recent: recent}
}

// MarkRead resets the counter.
func (s *NotificationService) MarkRead() models.NotificationSummary {
	s.mu.Lock()
	s.unread = 0
	s.recent = nil
	s.mu.Unlock()
	return s.Summary()
}

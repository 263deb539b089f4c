package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InboxStore records consumed event ids per consumer.
type InboxStore struct {
	db       *gorm.DB
	consumer string
}

func NewInboxStore(db *gorm.DB, consumer string) *InboxStore {
	return &InboxStore{db: db, consumer: consumer}
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	m := inboxModel{EventID: eventID, Consumer: s.consumer, ReceivedAt: time.Now().UTC()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).
		Where("event_id = ? AND consumer = ?", eventID, s.consumer).
		Delete(&inboxModel{}).Error
}

package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"villabook/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes in idempotency_records. Rows older than ttl
// are ignored on read and removed by Purge.
type IdempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	q := s.db.WithContext(ctx).Where("key = ?", key)
	if s.ttl > 0 {
		q = q.Where("created_at > ?", time.Now().UTC().Add(-s.ttl))
	}
	var m idempotencyModel
	if err := q.Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{
		Key:        m.Key,
		Payload:    m.Payload,
		ErrorKind:  m.ErrorKind,
		ErrorCode:  m.ErrorCode,
		Error:      m.Error,
		OccurredAt: m.OccurredAt,
	}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	m := idempotencyModel{
		Key:        rec.Key,
		Payload:    rec.Payload,
		ErrorKind:  rec.ErrorKind,
		ErrorCode:  rec.ErrorCode,
		Error:      rec.Error,
		OccurredAt: rec.OccurredAt,
		CreatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// Purge deletes expired rows and reports how many were removed.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("created_at <= ?", time.Now().UTC().Add(-s.ttl)).Delete(&idempotencyModel{})
	return res.RowsAffected, res.Error
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

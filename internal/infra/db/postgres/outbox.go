package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "villabook/internal/app/outbox"
	infraoutbox "villabook/internal/infra/outbox"
)

const (
	outboxNew     = "NEW"
	outboxClaimed = "CLAIMED"
	outboxSent    = "SENT"
	outboxFailed  = "FAILED"

	claimTimeout = 2 * time.Minute
)

// OutboxStore keeps records in outbox_records. Add joins the unit's transaction.
type OutboxStore struct {
	db *gorm.DB
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	now := time.Now().UTC()
	m := outboxModel{
		ID:            rec.ID,
		Name:          rec.Name,
		Payload:       rec.Payload,
		OccurredAt:    rec.OccurredAt,
		Aggregate:     rec.Aggregate,
		Headers:       rec.Headers,
		State:         outboxNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return conn(ctx, s.db).Create(&m).Error
}

func (s *OutboxStore) Flush(context.Context) error {
	return nil
}

// Claim locks the oldest due record with SKIP LOCKED so workers never share one.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	var claimed *outboxModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var m outboxModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(state IN ? AND next_attempt_at <= ?) OR (state = ? AND claimed_at <= ?)",
				[]string{outboxNew, outboxFailed}, now, outboxClaimed, now.Add(-claimTimeout)).
			Order("next_attempt_at").
			Take(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&m).Updates(map[string]any{"state": outboxClaimed, "claimed_by": workerID, "claimed_at": now}).Error; err != nil {
			return err
		}
		claimed = &m
		return nil
	})
	if err != nil || claimed == nil {
		return nil, err
	}
	return &infraoutbox.Message{
		ID:         claimed.ID,
		Name:       claimed.Name,
		Payload:    claimed.Payload,
		OccurredAt: claimed.OccurredAt,
		Aggregate:  claimed.Aggregate,
		Headers:    claimed.Headers,
		Attempts:   claimed.Attempts,
	}, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&outboxModel{}).Where("id = ?", id).
		Updates(map[string]any{"state": outboxSent, "sent_at": time.Now().UTC()}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"state":           outboxFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
			"attempts":        gorm.Expr("attempts + 1"),
		}).Error
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)

package memory

import (
	"context"
	"sync"

	appoutbox "villabook/internal/app/outbox"
)

// Publisher receives records when the outbox is flushed.
type Publisher interface {
	Publish(ctx context.Context, rec appoutbox.EventRecord) error
}

// Outbox keeps records in memory until Flush hands them to the publisher.
// Records that fail to publish stay queued for the next flush.
type Outbox struct {
	mu        sync.Mutex
	records   []appoutbox.EventRecord
	publisher Publisher
}

func NewOutbox(publisher Publisher) *Outbox {
	return &Outbox{publisher: publisher}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, rec := range o.records {
		if o.publisher == nil {
			break
		}
		if err := o.publisher.Publish(ctx, rec); err != nil {
			o.records = o.records[i:]
			return err
		}
	}
	o.records = nil
	return nil
}

// Pending returns a copy of records not yet flushed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)

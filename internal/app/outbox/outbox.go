package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"villabook/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = NewEventID
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// Recorder is implemented by aggregates embedding events.EventRecorder.
type Recorder interface {
	DrainEvents() []events.DomainEvent
}

// RecordDomainEvents encodes and appends events to the outbox.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Drain moves pending events of every aggregate into the outbox.
func Drain(ctx context.Context, box Outbox, encoder EventEncoder, aggregates ...Recorder) error {
	var evs []events.DomainEvent
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		evs = append(evs, agg.DrainEvents()...)
	}
	return RecordDomainEvents(ctx, box, encoder, evs)
}

// NewEventID returns a sortable unique event identifier.
func NewEventID() string {
	return ulid.Make().String()
}

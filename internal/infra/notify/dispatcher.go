package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	appoutbox "villabook/internal/app/outbox"
	"villabook/internal/app/policies"
	infraoutbox "villabook/internal/infra/outbox"
)

const prefix = "notification."

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Sink delivers one notification to the user. kind is e.g. "payment_success".
type Sink interface {
	Deliver(ctx context.Context, kind string, notice policies.Notice) error
}

// LogSink writes notifications to the log. It stands in for email or push delivery.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, kind string, n policies.Notice) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification delivered",
		"kind", kind,
		"user_id", n.UserID,
		"order_id", n.OrderID,
		"booking_id", n.BookingID,
		"property", n.PropertyTitle,
		"amount", n.Amount.String())
	return nil
}

// Dispatcher routes notification records to the sink exactly once per event id.
// Other records are acknowledged and ignored.
type Dispatcher struct {
	Sink   Sink
	Inbox  Inbox
	Logger *slog.Logger
}

// Handle consumes a CloudEvents message from Kafka.
func (d *Dispatcher) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env infraoutbox.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		d.log().Warn("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}
	return d.deliver(ctx, env.ID, strings.TrimSuffix(env.Type, ".v1"), env.Data)
}

// Publish consumes an in-process record flushed by the memory outbox.
func (d *Dispatcher) Publish(ctx context.Context, rec appoutbox.EventRecord) error {
	return d.deliver(ctx, rec.ID, rec.Name, rec.Payload)
}

func (d *Dispatcher) deliver(ctx context.Context, id, name string, data []byte) error {
	kind, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return nil
	}
	var notice policies.Notice
	if err := json.Unmarshal(data, &notice); err != nil {
		d.log().Warn("dropping malformed notification", "id", id, "name", name, "err", err)
		return nil
	}
	if d.Inbox != nil {
		seen, err := d.Inbox.Seen(ctx, id)
		if err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
		if seen {
			d.log().Debug("duplicate notification skipped", "id", id, "name", name)
			return nil
		}
	}
	if err := d.Sink.Deliver(ctx, kind, notice); err != nil {
		if d.Inbox != nil {
			if ferr := d.Inbox.Forget(ctx, id); ferr != nil {
				d.log().Error("inbox forget failed", "id", id, "err", ferr)
			}
		}
		return err
	}
	return nil
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.DiscardHandler)
}

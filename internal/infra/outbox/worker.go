package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "villabook/internal/app/outbox"
)

// Worker polls the store and publishes due records with retry backoff.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil && w.Logger != nil {
				w.Logger.Error("outbox poll failed", "worker", w.ID, "err", err)
			}
		}
	}
}

// ProcessOnce publishes up to BatchSize due records and reports how many were sent.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		msg, err := w.Store.Claim(ctx, w.ID)
		if err != nil || msg == nil {
			return sent, err
		}
		if err := w.publish(ctx, *msg); err != nil {
			next := w.nextRetry(msg.Attempts)
			if w.Logger != nil {
				w.Logger.Warn("outbox publish failed", "id", msg.ID, "name", msg.Name, "attempts", msg.Attempts+1, "retry_at", next, "err", err)
			}
			if err := w.Store.MarkFailed(ctx, msg.ID, next, err.Error()); err != nil {
				return sent, err
			}
			continue
		}
		if err := w.Store.MarkSent(ctx, msg.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (w *Worker) publish(ctx context.Context, msg Message) error {
	payload, headers, err := Format(w.Source, msg)
	if err != nil {
		return err
	}
	return w.Producer.Publish(ctx, TopicFor(w.TopicPrefix, msg.Name), msg.Aggregate, payload, headers)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

// Direct publishes in-process records straight to a producer. The memory outbox uses
// it on Flush when no durable store exists.
type Direct struct {
	Producer    Producer
	TopicPrefix string
	Source      string
}

func (d Direct) Publish(ctx context.Context, rec appoutbox.EventRecord) error {
	msg := FromRecord(rec)
	payload, headers, err := Format(d.Source, msg)
	if err != nil {
		return err
	}
	return d.Producer.Publish(ctx, TopicFor(d.TopicPrefix, msg.Name), msg.Aggregate, payload, headers)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"villabook/internal/app/middleware"
	appoutbox "villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainuser "villabook/internal/domain/user"
	"villabook/internal/infra/broker/kafka"
	"villabook/internal/infra/config"
	mongodb "villabook/internal/infra/db/mongo"
	pgdb "villabook/internal/infra/db/postgres"
	"villabook/internal/infra/inbox"
	"villabook/internal/infra/notify"
	"villabook/internal/infra/obs"
	infraoutbox "villabook/internal/infra/outbox"
	"villabook/internal/infra/storage/memory"
)

const notifierConsumer = "notifier"

// runtime holds the store-specific pieces every command builds on.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger

	factory     uow.UoWFactory
	users       domainuser.Repository
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	// outboxStore is nil for the memory driver; records are published on flush instead.
	outboxStore infraoutbox.Store
	inbox       notify.Inbox
	producer    *kafka.Producer
	checks      map[string]obs.Check

	migrate func(ctx context.Context) error
	closers []func(ctx context.Context) error
}

func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger, checks: map[string]obs.Check{}}
	var err error
	switch cfg.StorageDriver {
	case config.DriverMongo:
		err = rt.openMongo(ctx)
	case config.DriverPostgres:
		err = rt.openPostgres(ctx)
	default:
		err = rt.openMemory()
	}
	if err != nil {
		rt.Close(context.Background())
		return nil, err
	}
	logger.Info("storage ready", "driver", cfg.StorageDriver)
	return rt, nil
}

func (rt *runtime) openMongo(ctx context.Context) error {
	client, err := mongodb.New(ctx, rt.cfg.MongoURI, rt.cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)
	db := client.DB
	outboxStore := infraoutbox.NewMongoStore(db)
	idempotency := mongodb.NewIdempotencyStore(db)
	inboxStore := inbox.NewStore(db, notifierConsumer)

	rt.factory = mongodb.Factory{DB: db}
	rt.users = mongodb.NewUserRepository(db)
	rt.outbox = outboxStore
	rt.outboxStore = outboxStore
	rt.idempotency = idempotency
	rt.inbox = inboxStore
	rt.checks["mongo"] = client.Ping
	rt.migrate = func(ctx context.Context) error {
		return errors.Join(
			client.EnsureIndexes(ctx),
			outboxStore.EnsureIndexes(ctx),
			inboxStore.EnsureIndexes(ctx),
			idempotency.EnsureIndexes(ctx, rt.cfg.IdempotencyTTL),
		)
	}
	return nil
}

func (rt *runtime) openPostgres(ctx context.Context) error {
	db, err := pgdb.Open(ctx, rt.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return pgdb.Close(db) })
	outboxStore := pgdb.NewOutboxStore(db)

	rt.factory = pgdb.Factory{DB: db}
	rt.users = pgdb.NewUserRepository(db)
	rt.outbox = outboxStore
	rt.outboxStore = outboxStore
	rt.idempotency = pgdb.NewIdempotencyStore(db, rt.cfg.IdempotencyTTL)
	rt.inbox = pgdb.NewInboxStore(db, notifierConsumer)
	rt.checks["postgres"] = func(ctx context.Context) error { return pgdb.Ping(ctx, db) }
	rt.migrate = func(ctx context.Context) error { return pgdb.Migrate(ctx, db) }
	return nil
}

// openMemory keeps everything in process. Outbox records go to Kafka directly when
// brokers are configured, otherwise straight to the log notifier.
func (rt *runtime) openMemory() error {
	store := memory.NewStore()
	rt.factory = memory.Factory{Store: store}
	rt.users = store.Users
	rt.idempotency = memory.NewIdempotencyStore(rt.cfg.IdempotencyTTL)
	rt.inbox = inbox.NewMemory()
	rt.migrate = func(context.Context) error { return nil }

	var publisher memory.Publisher = &notify.Dispatcher{
		Sink:   notify.LogSink{Logger: rt.logger},
		Inbox:  rt.inbox,
		Logger: rt.logger,
	}
	if len(rt.cfg.KafkaBrokers) > 0 {
		producer, err := rt.kafkaProducer()
		if err != nil {
			return err
		}
		publisher = infraoutbox.Direct{
			Producer:    producer,
			TopicPrefix: rt.cfg.KafkaTopicPrefix,
			Source:      infraoutbox.DefaultSource,
		}
	}
	rt.outbox = memory.NewOutbox(publisher)
	return nil
}

func (rt *runtime) kafkaProducer() (*kafka.Producer, error) {
	if rt.producer != nil {
		return rt.producer, nil
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = "villabook"
	cfg.Producer.Timeout = 10 * time.Second
	producer, err := kafka.NewProducer(rt.cfg.KafkaBrokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	rt.producer = producer
	rt.closers = append(rt.closers, func(context.Context) error { return producer.Close() })
	return producer, nil
}

// outboxWorker returns nil when the driver keeps no durable outbox or publishing is off.
func (rt *runtime) outboxWorker() (*infraoutbox.Worker, error) {
	if rt.outboxStore == nil || !rt.cfg.OutboxEnabled {
		return nil, nil
	}
	producer, err := rt.kafkaProducer()
	if err != nil {
		return nil, err
	}
	return &infraoutbox.Worker{
		Store:       rt.outboxStore,
		Producer:    producer,
		Interval:    rt.cfg.OutboxPollInterval,
		TopicPrefix: rt.cfg.KafkaTopicPrefix,
		Source:      infraoutbox.DefaultSource,
		Backoff:     rt.cfg.RetryBackoff,
		Logger:      rt.logger.With("component", "outbox"),
	}, nil
}

// Close releases connections in reverse order of opening.
func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("close failed", "err", err)
		}
	}
	rt.closers = nil
}

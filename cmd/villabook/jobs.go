package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appoutbox "villabook/internal/app/outbox"
	"villabook/internal/domain/shared/money"
	domainuser "villabook/internal/domain/user"
	"villabook/internal/infra/broker/kafka"
	"villabook/internal/infra/gateway"
	"villabook/internal/infra/notify"
	infraoutbox "villabook/internal/infra/outbox"
	"villabook/internal/infra/security"
)

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, constraints and indexes for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())
			if err := rt.migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			rt.logger.Info("migration complete", "driver", rt.cfg.StorageDriver)
			return nil
		},
	}
}

func reapCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Cancel bookings of checkouts that were never paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, app, err := bootstrapApp(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())
			defer app.cache.Stop()
			result, err := app.reaper.Sweep(cmd.Context(), time.Now().UTC())
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
			return err
		},
	}
}

func completeStaysCmd(load loader) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "complete-stays",
		Short: "Mark confirmed bookings whose stay has ended as completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse("2006-01-02", at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed
			}
			rt, app, err := bootstrapApp(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())
			defer app.cache.Stop()
			result, err := app.completer.CompleteElapsed(cmd.Context(), now)
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this date (YYYY-MM-DD) instead of now")
	return cmd
}

func notifierCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "notifier",
		Short: "Consume notification events from Kafka and deliver them once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, load)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())
			if len(rt.cfg.KafkaBrokers) == 0 {
				return errors.New("notifier: KAFKA_BROKERS is required")
			}
			logger := rt.logger.With("component", "notifier")
			dispatcher := &notify.Dispatcher{
				Sink:   notify.LogSink{Logger: logger},
				Inbox:  rt.inbox,
				Logger: logger,
			}
			consumer, err := kafka.NewConsumer(rt.cfg.KafkaBrokers, rt.cfg.KafkaGroupID, nil, dispatcher, logger)
			if err != nil {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			defer consumer.Close()
			topic := infraoutbox.TopicFor(rt.cfg.KafkaTopicPrefix, appoutbox.NotificationPaymentSuccess)
			logger.Info("notifier started", "topic", topic, "group", rt.cfg.KafkaGroupID)
			return consumer.Run(ctx, []string{topic})
		},
	}
}

func createAdminCmd(load loader) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			rt, err := bootstrap(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())
			hash, err := security.BcryptHasher{}.Hash(password)
			if err != nil {
				return err
			}
			user, err := domainuser.NewUser(domainuser.CreateParams{
				ID:           domainuser.ID(uuid.NewString()),
				Email:        domainuser.NormalizeEmail(email),
				Name:         name,
				PasswordHash: hash,
				Role:         domainuser.RoleAdmin,
				CreatedAt:    time.Now(),
			})
			if err != nil {
				return err
			}
			if err := rt.users.Save(cmd.Context(), user); err != nil {
				return err
			}
			rt.logger.Info("admin created", "user_id", user.ID, "email", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (defaults to $ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// sandboxNotifyCmd prints a signed sandbox callback so a checkout can be settled by hand:
//
//	villabook sandbox-notify ORDER-... --amount 330.00 | curl -d @- localhost:8080/api/v1/payments/notifications
func sandboxNotifyCmd(load loader) *cobra.Command {
	var (
		amount string
		status string
		fraud  string
	)
	cmd := &cobra.Command{
		Use:   "sandbox-notify ORDER_ID",
		Short: "Print a signed sandbox payment notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if !cfg.SandboxEnabled() {
				return fmt.Errorf("sandbox-notify: sandbox payments are disabled (provider %q, env %q)", cfg.PaymentProvider, cfg.Env)
			}
			gross, err := money.ParseMajor(amount, cfg.Currency)
			if err != nil {
				return fmt.Errorf("sandbox-notify: %w", err)
			}
			body, err := gateway.Sandbox{ServerKey: cfg.SandboxServerKey()}.Notification(args[0], strings.ToLower(status), fraud, gross)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "gross amount of the order in major units, e.g. 330.00")
	cmd.Flags().StringVar(&status, "status", "settlement", "transaction status")
	cmd.Flags().StringVar(&fraud, "fraud", "accept", "fraud status")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func bootstrapApp(ctx context.Context, load loader) (*runtime, *application, error) {
	rt, err := bootstrap(ctx, load)
	if err != nil {
		return nil, nil, err
	}
	app, err := buildApplication(rt)
	if err != nil {
		rt.Close(context.Background())
		return nil, nil, err
	}
	return rt, app, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

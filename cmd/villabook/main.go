package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"villabook/internal/infra/config"
	"villabook/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var envFile string
	rootCmd := &cobra.Command{
		Use:           "villabook",
		Short:         "Property booking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	load := func() (config.Config, *slog.Logger, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return config.Config{}, nil, err
		}
		return cfg, obs.NewLogger(cfg.Env, cfg.LogLevel), nil
	}

	rootCmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		reapCmd(load),
		completeStaysCmd(load),
		notifierCmd(load),
		createAdminCmd(load),
		sandboxNotifyCmd(load),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type loader func() (config.Config, *slog.Logger, error)

// bootstrap loads configuration and opens the configured store.
func bootstrap(ctx context.Context, load loader) (*runtime, error) {
	cfg, logger, err := load()
	if err != nil {
		return nil, err
	}
	return openRuntime(ctx, cfg, logger)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	ginserver "villabook/internal/infra/http/gin"
	"villabook/internal/infra/obs"
)

func serveCmd(load loader) *cobra.Command {
	var (
		migrate      bool
		fixturesPath string
		reap         bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the outbox worker and checkout reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, load)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())
			logger := rt.logger

			if migrate {
				if err := rt.migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			app, err := buildApplication(rt)
			if err != nil {
				return err
			}
			defer app.cache.Stop()

			if fixturesPath == "" {
				fixturesPath = defaultFixturesPath()
			}
			if err := loadPropertyFixtures(ctx, rt.factory, fixturesPath, rt.cfg.Currency, logger); err != nil {
				logger.Warn("property fixtures load failed", "error", err, "path", fixturesPath)
			}

			var wg sync.WaitGroup
			worker, err := rt.outboxWorker()
			if err != nil {
				return err
			}
			if worker != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("outbox worker stopped", "error", err)
					}
				}()
			}
			if reap {
				wg.Add(1)
				go func() {
					defer wg.Done()
					runReaper(ctx, app, rt.cfg.ReaperInterval)
				}()
			}

			server := ginserver.NewServer(rt.cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
				Checks: rt.checks,
			}, app.httpHandlers(rt))

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("http shutdown failed", "error", err)
				}
			}()

			logger.Info("HTTP server starting", "addr", rt.cfg.HTTPAddr, "driver", rt.cfg.StorageDriver, "provider", rt.cfg.PaymentProvider)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			wg.Wait()
			logger.Info("HTTP server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema and indexes before serving")
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "JSON file with properties to seed")
	cmd.Flags().BoolVar(&reap, "reap", true, "cancel abandoned checkouts in the background")
	return cmd
}

// runReaper sweeps on every tick until ctx is done. Errors are logged and the next tick retries.
func runReaper(ctx context.Context, app *application, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := app.reaper.Sweep(ctx, now.UTC()); err != nil && ctx.Err() == nil {
				app.reaper.Logger.Error("reaper sweep failed", "error", err)
			}
		}
	}
}

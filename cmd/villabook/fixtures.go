package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"villabook/internal/app/uow"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/money"
)

type propertyFixture struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	NightlyRateMinor int64  `json:"nightly_rate_minor"`
	Currency         string `json:"currency"`
	MaxGuests        int    `json:"max_guests"`
	Active           *bool  `json:"active"`
}

// loadPropertyFixtures upserts the properties listed in path. Invalid entries are logged and skipped.
func loadPropertyFixtures(ctx context.Context, factory uow.UoWFactory, path, currency string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("property fixtures file empty", "path", path)
		return nil
	}

	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	for _, fx := range fixtures {
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		rate, err := money.New(fx.NightlyRateMinor, cur)
		if err != nil {
			logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		active := fx.Active == nil || *fx.Active
		params := domainproperties.Params{
			ID:          domainproperties.PropertyID(fx.ID),
			Title:       fx.Title,
			NightlyRate: rate,
			MaxGuests:   fx.MaxGuests,
			Active:      active,
			Now:         now,
		}
		err = uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
			repo := unit.Properties()
			existing, err := repo.ByID(ctx, params.ID)
			switch {
			case errors.Is(err, domainproperties.ErrNotFound):
				property, err := domainproperties.NewProperty(params)
				if err != nil {
					return err
				}
				return repo.Save(ctx, property)
			case err != nil:
				return err
			}
			if err := existing.Revise(params); err != nil {
				return err
			}
			return repo.Save(ctx, existing)
		})
		if err != nil {
			logger.Error("cannot store fixture property", "property_id", fx.ID, "error", err)
			continue
		}
		logger.Info("property fixture imported", "property_id", fx.ID)
	}
	return nil
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "properties.json"),
		filepath.Join("..", "data", "properties.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}

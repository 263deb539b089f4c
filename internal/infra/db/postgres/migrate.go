package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// exclusionDDL forbids two non-cancelled bookings of one property from sharing a night.
const exclusionDDL = `
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
		ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
			EXCLUDE USING gist (
				property_id WITH =,
				daterange(start_date, end_date, '[)') WITH &&
			) WHERE (status <> 'cancelled');
	END IF;
END
$$;`

// Migrate creates every table and constraint. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("enable btree_gist: %w", err)
	}
	err := db.AutoMigrate(
		&propertyModel{},
		&bookingModel{},
		&cartItemModel{},
		&intentModel{},
		&reviewModel{},
		&userModel{},
		&outboxModel{},
		&idempotencyModel{},
		&inboxModel{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(exclusionDDL).Error; err != nil {
		return fmt.Errorf("booking exclusion constraint: %w", err)
	}
	return nil
}

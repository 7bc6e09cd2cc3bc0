package migrations

import (
	"fmt"

	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

type Migrator struct {
	db *gorm.DB
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) RunMigrations() error {
	logger.Logger.Info("running migrations")

	migrations := []*gormigrate.Migration{
		{
			ID: "20251201_create_email_messages",
			Migrate: func(tx *gorm.DB) error {
				logger.Logger.Info("creating email_messages table")
				if err := tx.AutoMigrate(&models.EmailMessage{}); err != nil {
					return fmt.Errorf("failed to create email_messages: %v", err)
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("email_messages")
			},
		},
		{
			ID: "20251201_create_reservations",
			Migrate: func(tx *gorm.DB) error {
				logger.Logger.Info("creating reservations table")
				if err := tx.AutoMigrate(&models.Reservation{}); err != nil {
					return fmt.Errorf("failed to create reservations: %v", err)
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("reservations")
			},
		},
		{
			ID: "20260115_index_reservations_dispatch_order",
			Migrate: func(tx *gorm.DB) error {
				// Dispatch reads pending rows ordered by date then start time.
				return tx.Exec(
					"CREATE INDEX IF NOT EXISTS idx_reservations_dispatch " +
						"ON reservations (status, reservation_date, initial_time)",
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_reservations_dispatch").Error
			},
		},
	}

	migrator := gormigrate.New(m.db, gormigrate.DefaultOptions, migrations)

	if err := migrator.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Logger.Info("migrations completed")
	return nil
}

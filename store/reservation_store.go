package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/models"

	"gorm.io/gorm"
)

// ReservationStore persists reservations derived from inbound email.
type ReservationStore struct {
	db *gorm.DB
}

func NewReservationStore(db *gorm.DB) *ReservationStore {
	return &ReservationStore{db: db}
}

// CreateBatch inserts all reservations of one email in a single
// statement so an email's candidates land together or not at all.
func (s *ReservationStore) CreateBatch(ctx context.Context, reservations []models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&reservations).Error; err != nil {
		return fmt.Errorf("failed to store reservations: %w", err)
	}
	return nil
}

// Pending returns pending reservations ordered by date then start
// time, the order the court contact should see them in.
func (s *ReservationStore) Pending(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.WithContext(ctx).
		Where("status = ?", models.ReservationStatusPending).
		Order("reservation_date ASC").
		Order("initial_time ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending reservations: %w", err)
	}
	return reservations, nil
}

// MarkSent transitions pending -> sent, recording the provider sid
// and the sent timestamp. Conditional on the row still being pending.
func (s *ReservationStore) MarkSent(ctx context.Context, id string, providerSID string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, models.ReservationStatusPending).
		Updates(map[string]interface{}{
			"status":       models.ReservationStatusSent,
			"sent_at":      &now,
			"provider_sid": providerSID,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark reservation %s sent: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed transitions pending -> failed with the provider error.
func (s *ReservationStore) MarkFailed(ctx context.Context, id string, errMsg string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, models.ReservationStatusPending).
		Updates(map[string]interface{}{
			"status":        models.ReservationStatusFailed,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark reservation %s failed: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByIDs removes the given reservations in one batch.
func (s *ReservationStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Reservation{}).Error; err != nil {
		return fmt.Errorf("failed to delete reservations: %w", err)
	}
	return nil
}

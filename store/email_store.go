package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/models"

	"gorm.io/gorm"
)

// EmailStore persists inbound email messages.
type EmailStore struct {
	db *gorm.DB
}

func NewEmailStore(db *gorm.DB) *EmailStore {
	return &EmailStore{db: db}
}

func (s *EmailStore) Create(ctx context.Context, email *models.EmailMessage) error {
	if err := s.db.WithContext(ctx).Create(email).Error; err != nil {
		return fmt.Errorf("failed to store email: %w", err)
	}
	return nil
}

// Pending returns pending messages oldest first. A limit <= 0 means
// no bound (used for the synchronous post-intake drain).
func (s *EmailStore) Pending(ctx context.Context, limit int) ([]models.EmailMessage, error) {
	query := s.db.WithContext(ctx).
		Where("status = ?", models.EmailStatusPending).
		Order("received_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var emails []models.EmailMessage
	if err := query.Find(&emails).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending emails: %w", err)
	}
	return emails, nil
}

// MarkProcessed transitions pending -> processed. The update is
// conditional on the row still being pending; the returned bool tells
// the caller whether this invocation claimed the transition.
func (s *EmailStore) MarkProcessed(ctx context.Context, id uint) (bool, error) {
	return s.transition(ctx, id, models.EmailStatusProcessed, "")
}

// MarkFailed transitions pending -> failed recording the error detail.
func (s *EmailStore) MarkFailed(ctx context.Context, id uint, errMsg string) (bool, error) {
	return s.transition(ctx, id, models.EmailStatusFailed, errMsg)
}

func (s *EmailStore) transition(ctx context.Context, id uint, status models.EmailStatus, errMsg string) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": &now,
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}

	result := s.db.WithContext(ctx).
		Model(&models.EmailMessage{}).
		Where("id = ? AND status = ?", id, models.EmailStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update email %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

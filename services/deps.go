package services

import (
	"context"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/models"
)

// EmailStore is the slice of the record store the pipelines need for
// inbound messages. Status transitions report whether this call
// claimed the row, so concurrent runs never double-process.
type EmailStore interface {
	Pending(ctx context.Context, limit int) ([]models.EmailMessage, error)
	MarkProcessed(ctx context.Context, id uint) (bool, error)
	MarkFailed(ctx context.Context, id uint, errMsg string) (bool, error)
}

// ReservationStore is the slice of the record store the pipelines and
// the admin interpreter need for reservations.
type ReservationStore interface {
	CreateBatch(ctx context.Context, reservations []models.Reservation) error
	Pending(ctx context.Context) ([]models.Reservation, error)
	MarkSent(ctx context.Context, id string, providerSID string) (bool, error)
	MarkFailed(ctx context.Context, id string, errMsg string) (bool, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// MailSender sends one email and returns the provider message id.
type MailSender interface {
	Send(ctx context.Context, to, subject, text, html string) (string, error)
}

// ChatSender sends WhatsApp messages, free-text or via a content
// template, and returns the provider message id.
type ChatSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendTemplate(ctx context.Context, to, templateSID string, variables map[string]string) (string, error)
}

// ReservationParser extracts reservation candidates from free text.
// The anchor date is supplied by the caller; implementations must not
// read the clock so resolution stays deterministic and testable.
type ReservationParser interface {
	ParseReservations(ctx context.Context, body, senderEmail, senderName string, now time.Time) (*ParseResult, error)
}

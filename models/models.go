package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailStatus is the lifecycle state of an inbound email.
type EmailStatus string

const (
	EmailStatusPending   EmailStatus = "pending"
	EmailStatusProcessed EmailStatus = "processed"
	EmailStatusFailed    EmailStatus = "failed"
)

// ReservationStatus is the lifecycle state of a stored reservation.
type ReservationStatus string

const (
	ReservationStatusPending ReservationStatus = "pending"
	ReservationStatusSent    ReservationStatus = "sent"
	ReservationStatusFailed  ReservationStatus = "failed"
)

// EmailMessage is one received email, stored before interpretation.
// Rows are created by the webhook handlers and mutated only by the
// intake pipeline; they are never deleted.
type EmailMessage struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	FromEmail    string      `gorm:"type:varchar(255);not null;index" json:"from_email"`
	FromName     string      `gorm:"type:varchar(255)" json:"from_name,omitempty"`
	Subject      string      `gorm:"type:varchar(255)" json:"subject,omitempty"`
	Body         string      `gorm:"type:text;not null" json:"body"`
	HTMLBody     string      `gorm:"type:text" json:"html_body,omitempty"`
	Status       EmailStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	ReceivedAt   time.Time   `gorm:"type:timestamp with time zone;not null" json:"received_at"`
	ProcessedAt  *time.Time  `gorm:"type:timestamp with time zone" json:"processed_at,omitempty"`
	CreatedAt    time.Time   `gorm:"type:timestamp with time zone" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"type:timestamp with time zone" json:"updated_at"`
}

func (e *EmailMessage) BeforeCreate(tx *gorm.DB) error {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = EmailStatusPending
	}
	return nil
}

// Reservation is one structured court request derived from an email.
// The id is a UUID string so admins can address rows by prefix.
// Date is YYYY-MM-DD and times are zero-padded HH:MM, which keeps the
// two-field ascending ordering lexicographic.
type Reservation struct {
	ID              string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	EmailID         uint              `gorm:"not null;index" json:"email_id"`
	SenderName      string            `gorm:"type:varchar(255)" json:"sender_name,omitempty"`
	SenderEmail     string            `gorm:"type:varchar(255);not null" json:"sender_email"`
	ReservationDate string            `gorm:"type:varchar(10);not null" json:"reservation_date"`
	InitialTime     string            `gorm:"type:varchar(5);not null" json:"initial_time"`
	EndTime         string            `gorm:"type:varchar(5);not null" json:"end_time"`
	ParsedData      string            `gorm:"type:jsonb" json:"parsed_data,omitempty"`
	Status          ReservationStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	SentAt          *time.Time        `gorm:"type:timestamp with time zone" json:"sent_at,omitempty"`
	ProviderSID     string            `gorm:"type:varchar(64)" json:"provider_sid,omitempty"`
	ErrorMessage    string            `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time         `gorm:"type:timestamp with time zone" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"type:timestamp with time zone" json:"updated_at"`
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReservationStatusPending
	}
	return nil
}

// Requester is the display name used in admin reports.
func (r *Reservation) Requester() string {
	if r.SenderName != "" {
		return r.SenderName
	}
	if r.SenderEmail != "" {
		return r.SenderEmail
	}
	return "Sin nombre"
}

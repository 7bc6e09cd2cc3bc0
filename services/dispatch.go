package services

import (
	"context"

	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/models"

	"go.uber.org/zap"
)

// DispatchConfig carries the fixed destinations and the optional
// content template SIDs. An empty template SID means the composed
// free-text message is sent instead.
type DispatchConfig struct {
	CourtNumber      string
	GroupNumber      string
	TemplateBooking  string
	TemplateConfirm  string
	TemplateReminder string
}

// DispatchItemResult is the outcome of one reservation in a run.
type DispatchItemResult struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	ProviderSID   string `json:"provider_sid,omitempty"`
}

// DispatchResult summarises one dispatch run.
type DispatchResult struct {
	Total   int                  `json:"total"`
	Results []DispatchItemResult `json:"results"`
}

// DispatchService relays pending reservations to the court contact
// over WhatsApp and confirms each one to the group.
type DispatchService struct {
	reservations ReservationStore
	chat         ChatSender
	config       DispatchConfig
}

func NewDispatchService(reservations ReservationStore, chat ChatSender, config DispatchConfig) *DispatchService {
	return &DispatchService{
		reservations: reservations,
		chat:         chat,
		config:       config,
	}
}

// SendPending dispatches every pending reservation, chronologically,
// isolating failures per item. Only the initial fetch fails the run.
func (s *DispatchService) SendPending(ctx context.Context) (*DispatchResult, error) {
	reservations, err := s.reservations.Pending(ctx)
	if err != nil {
		return nil, err
	}

	run := &DispatchResult{
		Total:   len(reservations),
		Results: make([]DispatchItemResult, 0, len(reservations)),
	}

	for i := range reservations {
		run.Results = append(run.Results, s.sendOne(ctx, &reservations[i]))
	}

	logger.Logger.Info("dispatch run completed",
		zap.Int("total", run.Total))

	return run, nil
}

func (s *DispatchService) sendOne(ctx context.Context, r *models.Reservation) DispatchItemResult {
	logFields := []zap.Field{
		zap.String("reservation_id", r.ID),
		zap.String("date", r.ReservationDate),
	}

	sid, err := s.sendBooking(ctx, r)
	if err != nil {
		logger.Logger.Error("booking send failed", append(logFields, zap.Error(err))...)
		if _, markErr := s.reservations.MarkFailed(ctx, r.ID, err.Error()); markErr != nil {
			logger.Logger.Error("failed to record reservation failure",
				append(logFields, zap.Error(markErr))...)
		}
		return DispatchItemResult{
			ReservationID: r.ID,
			Status:        string(models.ReservationStatusFailed),
			Error:         err.Error(),
		}
	}

	claimed, err := s.reservations.MarkSent(ctx, r.ID, sid)
	if err != nil {
		logger.Logger.Error("failed to mark reservation sent",
			append(logFields, zap.Error(err))...)
		return DispatchItemResult{
			ReservationID: r.ID,
			Status:        string(models.ReservationStatusFailed),
			Error:         err.Error(),
		}
	}
	if !claimed {
		// Another run got here first; the booking went out twice but
		// the bookkeeping stays consistent.
		logger.Logger.Warn("reservation no longer pending after send", logFields...)
	}

	// Best-effort confirmation: the booking is already committed to
	// the court, so its failure is logged, never rolled back.
	if err := s.sendConfirmation(ctx, r); err != nil {
		logger.Logger.Error("group confirmation failed",
			append(logFields, zap.Error(err))...)
	}

	logger.Logger.Info("reservation dispatched",
		append(logFields, zap.String("sid", sid))...)

	return DispatchItemResult{
		ReservationID: r.ID,
		Status:        string(models.ReservationStatusSent),
		ProviderSID:   sid,
	}
}

func (s *DispatchService) sendBooking(ctx context.Context, r *models.Reservation) (string, error) {
	if s.config.TemplateBooking != "" {
		return s.chat.SendTemplate(ctx, s.config.CourtNumber, s.config.TemplateBooking, map[string]string{
			"1": FormatDate(r.ReservationDate),
			"2": FormatClock(r.InitialTime),
			"3": FormatClock(r.EndTime),
		})
	}
	return s.chat.SendText(ctx, s.config.CourtNumber,
		BookingMessage(r.ReservationDate, r.InitialTime, r.EndTime))
}

func (s *DispatchService) sendConfirmation(ctx context.Context, r *models.Reservation) error {
	if s.config.TemplateConfirm != "" {
		_, err := s.chat.SendTemplate(ctx, s.config.GroupNumber, s.config.TemplateConfirm, map[string]string{
			"1": r.Requester(),
			"2": FormatDate(r.ReservationDate),
			"3": FormatClock(r.InitialTime),
			"4": FormatClock(r.EndTime),
		})
		return err
	}
	_, err := s.chat.SendText(ctx, s.config.GroupNumber,
		GroupConfirmation(r.SenderName, r.ReservationDate, r.InitialTime, r.EndTime))
	return err
}

// SendReminder posts the weekly nudge to the group telling members
// where to mail their reservations.
func (s *DispatchService) SendReminder(ctx context.Context, reservationEmail string) (string, error) {
	if s.config.TemplateReminder != "" {
		return s.chat.SendTemplate(ctx, s.config.GroupNumber, s.config.TemplateReminder, map[string]string{
			"1": reservationEmail,
		})
	}
	return s.chat.SendText(ctx, s.config.GroupNumber, ReminderMessage(reservationEmail))
}

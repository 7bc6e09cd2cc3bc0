package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/models"

	"go.uber.org/zap"
)

// IntakeResult is the outcome of one processed inbound message.
type IntakeResult struct {
	EmailID           uint   `json:"email_id"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
	ReservationsFound int    `json:"reservations_found"`
	AdminCommand      string `json:"admin_command,omitempty"`
}

// IntakeBatchResult summarises one pipeline invocation.
type IntakeBatchResult struct {
	Processed int            `json:"processed"`
	Results   []IntakeResult `json:"results"`
}

// IntakeService drains pending inbound email: admin commands go to
// the interpreter, everything else through extraction into stored
// reservations plus a reply to the sender.
type IntakeService struct {
	emails       EmailStore
	reservations ReservationStore
	parser       ReservationParser
	mailer       MailSender
	admin        *AdminService
	adminEmails  map[string]bool
	now          func() time.Time
}

func NewIntakeService(
	emails EmailStore,
	reservations ReservationStore,
	parser ReservationParser,
	mailer MailSender,
	admin *AdminService,
	adminEmails []string,
) *IntakeService {
	allowed := make(map[string]bool, len(adminEmails))
	for _, addr := range adminEmails {
		allowed[strings.ToLower(strings.TrimSpace(addr))] = true
	}

	return &IntakeService{
		emails:       emails,
		reservations: reservations,
		parser:       parser,
		mailer:       mailer,
		admin:        admin,
		adminEmails:  allowed,
		now:          time.Now,
	}
}

// WithClock overrides the anchor-date source, used by tests.
func (s *IntakeService) WithClock(now func() time.Time) *IntakeService {
	s.now = now
	return s
}

func (s *IntakeService) IsAdminEmail(addr string) bool {
	return s.adminEmails[strings.ToLower(strings.TrimSpace(addr))]
}

// ProcessPending works through pending messages oldest first. A
// limit <= 0 processes everything pending. One message's failure is
// recorded on its row and never aborts the batch; only the initial
// fetch can fail the invocation as a whole.
func (s *IntakeService) ProcessPending(ctx context.Context, limit int) (*IntakeBatchResult, error) {
	emails, err := s.emails.Pending(ctx, limit)
	if err != nil {
		return nil, err
	}

	batch := &IntakeBatchResult{Results: make([]IntakeResult, 0, len(emails))}
	if len(emails) == 0 {
		return batch, nil
	}

	for i := range emails {
		result := s.processOne(ctx, &emails[i])
		batch.Results = append(batch.Results, result)
		batch.Processed++
	}

	logger.Logger.Info("intake batch completed",
		zap.Int("processed", batch.Processed))

	return batch, nil
}

func (s *IntakeService) processOne(ctx context.Context, email *models.EmailMessage) IntakeResult {
	logFields := []zap.Field{
		zap.Uint("email_id", email.ID),
		zap.String("from", email.FromEmail),
	}

	if s.IsAdminEmail(email.FromEmail) {
		if command := ParseAdminCommand(email.Subject, email.Body); command != nil {
			return s.processAdmin(ctx, email, command, logFields)
		}
	}

	parseResult, err := s.parser.ParseReservations(ctx, email.Body, email.FromEmail, email.FromName, s.now())
	if err != nil {
		logger.Logger.Error("extraction failed", append(logFields, zap.Error(err))...)
		s.markFailed(ctx, email.ID, err.Error(), logFields)
		return IntakeResult{EmailID: email.ID, Status: string(models.EmailStatusFailed), Error: err.Error()}
	}

	candidates := parseResult.Candidates

	if len(candidates) == 0 {
		claimed, err := s.emails.MarkProcessed(ctx, email.ID)
		if err != nil {
			s.markFailed(ctx, email.ID, err.Error(), logFields)
			return IntakeResult{EmailID: email.ID, Status: string(models.EmailStatusFailed), Error: err.Error()}
		}
		if claimed {
			s.sendNoReservationReply(ctx, email, logFields)
		}
		return IntakeResult{EmailID: email.ID, Status: string(models.EmailStatusProcessed)}
	}

	reservations := make([]models.Reservation, len(candidates))
	for i, c := range candidates {
		reservations[i] = models.Reservation{
			EmailID:         email.ID,
			SenderName:      c.SenderName,
			SenderEmail:     c.SenderEmail,
			ReservationDate: c.Date,
			InitialTime:     c.InitialTime,
			EndTime:         c.EndTime,
			ParsedData:      parseResult.RawResponse,
			Status:          models.ReservationStatusPending,
		}
	}

	if err := s.reservations.CreateBatch(ctx, reservations); err != nil {
		logger.Logger.Error("failed to store reservations", append(logFields, zap.Error(err))...)
		s.markFailed(ctx, email.ID, err.Error(), logFields)
		return IntakeResult{EmailID: email.ID, Status: string(models.EmailStatusFailed), Error: err.Error()}
	}

	claimed, err := s.emails.MarkProcessed(ctx, email.ID)
	if err != nil {
		return IntakeResult{EmailID: email.ID, Status: string(models.EmailStatusFailed), Error: err.Error()}
	}
	if claimed {
		s.sendSummaryReply(ctx, email, candidates, logFields)
	}

	logger.Logger.Info("email processed",
		append(logFields, zap.Int("reservations", len(candidates)))...)

	return IntakeResult{
		EmailID:           email.ID,
		Status:            string(models.EmailStatusProcessed),
		ReservationsFound: len(candidates),
	}
}

func (s *IntakeService) processAdmin(ctx context.Context, email *models.EmailMessage, command *AdminCommand, logFields []zap.Field) IntakeResult {
	logger.Logger.Info("admin command received",
		append(logFields, zap.String("command", command.Type))...)

	if err := s.admin.Execute(ctx, command, email); err != nil {
		logger.Logger.Error("admin command failed", append(logFields, zap.Error(err))...)
		s.markFailed(ctx, email.ID, err.Error(), logFields)
		return IntakeResult{
			EmailID:      email.ID,
			Status:       string(models.EmailStatusFailed),
			Error:        err.Error(),
			AdminCommand: command.Type,
		}
	}

	if _, err := s.emails.MarkProcessed(ctx, email.ID); err != nil {
		return IntakeResult{EmailID: email.ID, Status: string(models.EmailStatusFailed), Error: err.Error()}
	}

	return IntakeResult{
		EmailID:      email.ID,
		Status:       string(models.EmailStatusProcessed),
		AdminCommand: command.Type,
	}
}

func (s *IntakeService) markFailed(ctx context.Context, id uint, errMsg string, logFields []zap.Field) {
	if _, err := s.emails.MarkFailed(ctx, id, errMsg); err != nil {
		logger.Logger.Error("failed to record email failure",
			append(logFields, zap.Error(err))...)
	}
}

// Reply failures are logged only: the message's status bookkeeping is
// already committed and the sender can always write again.
func (s *IntakeService) sendNoReservationReply(ctx context.Context, email *models.EmailMessage, logFields []zap.Field) {
	body := fmt.Sprintf("Hola %s,\n\n"+
		"Recibimos tu email pero no detectamos ninguna reserva de cancha de tenis.\n\n"+
		"Escríbenos la fecha y hora que quieres reservar, por ejemplo:\n"+
		"\"Quiero reservar el miércoles de 18:00 a 19:00\"\n\n"+
		"Saludos,\n— Bot de Reservas", senderSalutation(email))

	if _, err := s.mailer.Send(ctx, email.FromEmail, "No detectamos ninguna reserva", body, ""); err != nil {
		logger.Logger.Error("failed to send no-reservation reply",
			append(logFields, zap.Error(err))...)
	}
}

func (s *IntakeService) sendSummaryReply(ctx context.Context, email *models.EmailMessage, candidates []ReservationCandidate, logFields []zap.Field) {
	var summary strings.Builder
	fmt.Fprintf(&summary, "Hola %s,\n\n"+
		"Hemos recibido tu solicitud de reserva. Reservas detectadas:\n\n", senderSalutation(email))

	for i, c := range candidates {
		fmt.Fprintf(&summary, "%d. %s de %s a %s\n",
			i+1, FormatDate(c.Date), c.InitialTime, c.EndTime)
	}

	summary.WriteString("\nLas enviaremos al club en el próximo envío semanal.\n\n" +
		"Saludos,\n— Bot de Reservas")

	if _, err := s.mailer.Send(ctx, email.FromEmail, "Reserva de tenis recibida", summary.String(), ""); err != nil {
		logger.Logger.Error("failed to send summary reply",
			append(logFields, zap.Error(err))...)
	}
}

func senderSalutation(email *models.EmailMessage) string {
	if email.FromName != "" {
		return email.FromName
	}
	return "amigo/a"
}

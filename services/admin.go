package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/models"

	"go.uber.org/zap"
)

// Admin command grammar: the first line of subject+body matching a
// known keyword decides the command. Keywords accept a small synonym
// set and may be prefixed with a marker character or "command:".

const (
	CommandList   = "list"
	CommandDelete = "delete"
	CommandHelp   = "help"
)

var commandSynonyms = map[string]string{
	"list":     CommandList,
	"listar":   CommandList,
	"lista":    CommandList,
	"retrieve": CommandList,
	"obtener":  CommandList,
	"status":   CommandList,
	"delete":   CommandDelete,
	"eliminar": CommandDelete,
	"borrar":   CommandDelete,
	"remove":   CommandDelete,
	"cancel":   CommandDelete,
	"cancelar": CommandDelete,
	"help":     CommandHelp,
	"ayuda":    CommandHelp,
}

var commandLineRe = regexp.MustCompile(`(?i)^(?:[#>@-]?\s*)?(?:command\s*:)?\s*([a-záéíóúñ]+)(.*)$`)

// AdminCommand is one parsed admin instruction.
type AdminCommand struct {
	Type    string
	Targets []string
}

// ParseAdminCommand scans subject and body line by line for a command.
// It returns nil when no line matches, in which case the message falls
// through to extraction.
func ParseAdminCommand(subject, body string) *AdminCommand {
	combined := subject + "\n" + body

	for _, rawLine := range strings.Split(combined, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(rawLine, "\r"))
		if line == "" {
			continue
		}

		match := commandLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		keyword, ok := commandSynonyms[strings.ToLower(match[1])]
		if !ok {
			continue
		}

		if keyword == CommandList || keyword == CommandHelp {
			return &AdminCommand{Type: keyword}
		}

		var targets []string
		for _, token := range strings.FieldsFunc(match[2], func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		}) {
			if token = strings.TrimSpace(token); token != "" {
				targets = append(targets, token)
			}
		}
		return &AdminCommand{Type: CommandDelete, Targets: targets}
	}

	return nil
}

// AdminService executes admin commands against the reservation store
// and replies by email. Callers must have verified the sender is in
// the admin allow-list before invoking it.
type AdminService struct {
	reservations ReservationStore
	mailer       MailSender
}

func NewAdminService(reservations ReservationStore, mailer MailSender) *AdminService {
	return &AdminService{
		reservations: reservations,
		mailer:       mailer,
	}
}

func (s *AdminService) Execute(ctx context.Context, command *AdminCommand, email *models.EmailMessage) error {
	switch command.Type {
	case CommandHelp:
		return s.sendHelp(ctx, email)
	case CommandList:
		return s.sendPendingList(ctx, email)
	case CommandDelete:
		return s.deletePending(ctx, command.Targets, email)
	default:
		return fmt.Errorf("unsupported admin command: %s", command.Type)
	}
}

func (s *AdminService) sendPendingList(ctx context.Context, email *models.EmailMessage) error {
	reservations, err := s.reservations.Pending(ctx)
	if err != nil {
		return err
	}

	intro := "Actualmente no hay reservas pendientes por enviar."
	if len(reservations) > 0 {
		intro = "Estas son las reservas pendientes por enviar al club:"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hola %s,\n\n%s\n\n", adminSalutation(email), intro)

	for i, r := range reservations {
		fmt.Fprintf(&body, "%d. %s\n   ID: %s\n   Solicitante: %s\n\n",
			i+1, reservationLine(&r), r.ID, r.Requester())
	}

	if len(reservations) > 0 {
		body.WriteString("Para eliminar una reserva responde con:\n")
		body.WriteString("DELETE <primeros-8-caracteres-del-ID>\n")
	}

	body.WriteString("\n— Bot de Reservas")

	if _, err := s.mailer.Send(ctx, email.FromEmail, "Reservas pendientes", body.String(), ""); err != nil {
		return fmt.Errorf("failed to send pending list: %w", err)
	}

	logger.Logger.Info("admin list sent",
		zap.String("admin", email.FromEmail),
		zap.Int("count", len(reservations)))
	return nil
}

func (s *AdminService) deletePending(ctx context.Context, targets []string, email *models.EmailMessage) error {
	// Case-insensitive, deduplicated prefix tokens.
	seen := make(map[string]bool)
	var tokens []string
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}

	if len(tokens) == 0 {
		_, err := s.mailer.Send(ctx, email.FromEmail,
			"Eliminar reservas: se necesita un ID",
			"Envía el comando como \"DELETE <id>\" usando los primeros 8 caracteres del ID que aparece en la lista.",
			"")
		return err
	}

	reservations, err := s.reservations.Pending(ctx)
	if err != nil {
		return err
	}

	type ambiguousEntry struct {
		target  string
		options []string
	}

	var matches []models.Reservation
	var missing []string
	var ambiguous []ambiguousEntry

	for _, token := range tokens {
		var candidates []models.Reservation
		for _, r := range reservations {
			if strings.HasPrefix(strings.ToLower(r.ID), token) {
				candidates = append(candidates, r)
			}
		}

		switch len(candidates) {
		case 0:
			missing = append(missing, token)
		case 1:
			matches = append(matches, candidates[0])
		default:
			options := make([]string, len(candidates))
			for i, c := range candidates {
				options[i] = c.ID
			}
			ambiguous = append(ambiguous, ambiguousEntry{target: token, options: options})
		}
	}

	// Two tokens may resolve to the same reservation.
	seenIDs := make(map[string]bool)
	var unique []models.Reservation
	for _, m := range matches {
		if !seenIDs[m.ID] {
			seenIDs[m.ID] = true
			unique = append(unique, m)
		}
	}

	if len(unique) > 0 {
		ids := make([]string, len(unique))
		for i, m := range unique {
			ids[i] = m.ID
		}
		if err := s.reservations.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hola %s,\n\n", adminSalutation(email))

	if len(unique) > 0 {
		body.WriteString("✅ Reservas eliminadas:\n")
		for _, m := range unique {
			fmt.Fprintf(&body, "- %s (ID: %s)\n", reservationLine(&m), m.ID)
		}
		body.WriteString("\n")
	}

	if len(missing) > 0 {
		body.WriteString("❌ No encontramos coincidencias para:\n")
		for _, target := range missing {
			fmt.Fprintf(&body, "- %s\n", target)
		}
		body.WriteString("\n")
	}

	if len(ambiguous) > 0 {
		body.WriteString("⚠️ Coincidencias múltiples, usa más caracteres del ID:\n")
		for _, entry := range ambiguous {
			fmt.Fprintf(&body, "- %s → %s\n", entry.target, strings.Join(entry.options, ", "))
		}
		body.WriteString("\n")
	}

	body.WriteString("— Bot de Reservas")

	if _, err := s.mailer.Send(ctx, email.FromEmail,
		"Resultado de la eliminación de reservas", body.String(), ""); err != nil {
		return fmt.Errorf("failed to send delete report: %w", err)
	}

	logger.Logger.Info("admin delete executed",
		zap.String("admin", email.FromEmail),
		zap.Int("deleted", len(unique)),
		zap.Int("missing", len(missing)),
		zap.Int("ambiguous", len(ambiguous)))
	return nil
}

func (s *AdminService) sendHelp(ctx context.Context, email *models.EmailMessage) error {
	body := fmt.Sprintf("Hola %s,\n\n"+
		"Comandos disponibles:\n"+
		"- LIST: muestra todas las reservas pendientes.\n"+
		"- DELETE <id>: elimina la reserva indicada (puedes usar los primeros 8 caracteres del ID).\n"+
		"- HELP: muestra este mensaje.\n\n"+
		"Ejemplos:\n"+
		"LIST\n"+
		"DELETE 4f2a1b3c\n\n"+
		"— Bot de Reservas", adminSalutation(email))

	_, err := s.mailer.Send(ctx, email.FromEmail, "Ayuda - Gestión de reservas", body, "")
	return err
}

func adminSalutation(email *models.EmailMessage) string {
	if email.FromName != "" {
		return email.FromName
	}
	return "admin"
}

func reservationLine(r *models.Reservation) string {
	return fmt.Sprintf("%s de %s a %s",
		FormatDate(r.ReservationDate), FormatClock(r.InitialTime), FormatClock(r.EndTime))
}

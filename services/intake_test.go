package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/models"
)

func pendingEmail(id uint, from, body string) *models.EmailMessage {
	return &models.EmailMessage{
		ID:         id,
		FromEmail:  from,
		FromName:   "Pedro",
		Body:       body,
		Status:     models.EmailStatusPending,
		ReceivedAt: time.Date(2025, 11, 10, 9, 0, int(id), 0, time.UTC),
	}
}

func newIntakeFixture(emails *fakeEmailStore, reservations *fakeReservationStore, parser *fakeParser, mailer *fakeMailer) *IntakeService {
	admin := NewAdminService(reservations, mailer)
	svc := NewIntakeService(emails, reservations, parser, mailer, admin, []string{"admin@club.cl"})
	return svc.WithClock(func() time.Time {
		return time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	})
}

func TestProcessPendingIsIdempotentWhenEmpty(t *testing.T) {
	svc := newIntakeFixture(&fakeEmailStore{}, &fakeReservationStore{}, &fakeParser{}, &fakeMailer{})

	for i := 0; i < 2; i++ {
		batch, err := svc.ProcessPending(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batch.Processed != 0 {
			t.Errorf("run %d processed %d, want 0", i, batch.Processed)
		}
	}
}

func TestProcessPendingStoresReservationsAndReplies(t *testing.T) {
	body := "Quiero reservar mañana de 18:00 a 19:00"
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "socio@club.cl", body),
	}}
	reservations := &fakeReservationStore{}
	parser := &fakeParser{results: map[string]*ParseResult{
		body: {
			Candidates: []ReservationCandidate{{
				Date:        "2025-11-11",
				InitialTime: "18:00",
				EndTime:     "19:00",
				SenderEmail: "socio@club.cl",
				SenderName:  "Pedro",
			}},
			RawResponse: `{"reservations":[{"date":"2025-11-11","initial_time":"18:00","end_time":"19:00"}]}`,
		},
	}}
	mailer := &fakeMailer{}
	svc := newIntakeFixture(emails, reservations, parser, mailer)

	batch, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Processed != 1 || batch.Results[0].ReservationsFound != 1 {
		t.Fatalf("batch = %+v", batch)
	}

	if got := emails.byID(1).Status; got != models.EmailStatusProcessed {
		t.Errorf("email status = %s, want processed", got)
	}

	if len(reservations.rows) != 1 {
		t.Fatalf("expected one stored reservation, got %d", len(reservations.rows))
	}
	r := reservations.rows[0]
	if r.EmailID != 1 || r.ReservationDate != "2025-11-11" || r.InitialTime != "18:00" || r.EndTime != "19:00" {
		t.Errorf("stored reservation = %+v", r)
	}
	if r.Status != models.ReservationStatusPending {
		t.Errorf("reservation status = %s, want pending", r.Status)
	}
	if r.ParsedData == "" {
		t.Error("raw extraction payload must be kept for audit")
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(mailer.sent))
	}
	reply := mailer.sent[0]
	if reply.to != "socio@club.cl" {
		t.Errorf("reply to = %s", reply.to)
	}
	if !strings.Contains(reply.text, "11 de noviembre de 2025 de 18:00 a 19:00") {
		t.Errorf("reply must summarise the reservation: %q", reply.text)
	}
}

func TestProcessPendingZeroCandidates(t *testing.T) {
	body := "Hola, ¿cómo están?"
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "socio@club.cl", body),
	}}
	mailer := &fakeMailer{}
	svc := newIntakeFixture(emails, &fakeReservationStore{}, &fakeParser{}, mailer)

	batch, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Results[0].Status != string(models.EmailStatusProcessed) {
		t.Errorf("result = %+v", batch.Results[0])
	}

	if got := emails.byID(1).Status; got != models.EmailStatusProcessed {
		t.Errorf("email status = %s, want processed", got)
	}

	if len(mailer.sent) != 1 || !strings.Contains(mailer.sent[0].text, "no detectamos ninguna reserva") {
		t.Errorf("expected no-reservation reply, got %+v", mailer.sent)
	}
}

func TestProcessPendingExtractionFailure(t *testing.T) {
	body := "texto"
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "socio@club.cl", body),
	}}
	parser := &fakeParser{errs: map[string]error{body: errors.New("model unreachable")}}
	svc := newIntakeFixture(emails, &fakeReservationStore{}, parser, &fakeMailer{})

	batch, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Results[0].Status != string(models.EmailStatusFailed) {
		t.Errorf("result = %+v", batch.Results[0])
	}

	email := emails.byID(1)
	if email.Status != models.EmailStatusFailed || email.ErrorMessage != "model unreachable" {
		t.Errorf("email = status %s, error %q", email.Status, email.ErrorMessage)
	}
}

func TestBatchIsolation(t *testing.T) {
	candidate := ReservationCandidate{
		Date: "2025-11-11", InitialTime: "18:00", EndTime: "19:00",
		SenderEmail: "socio@club.cl", SenderName: "Pedro",
	}
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "a@club.cl", "reserva uno"),
		pendingEmail(2, "b@club.cl", "reserva dos"),
		pendingEmail(3, "c@club.cl", "reserva tres"),
	}}
	reservations := &fakeReservationStore{
		createErrFor: map[uint]error{2: errors.New("store unavailable")},
	}
	parser := &fakeParser{results: map[string]*ParseResult{
		"reserva uno":  {Candidates: []ReservationCandidate{candidate}, RawResponse: "{}"},
		"reserva dos":  {Candidates: []ReservationCandidate{candidate}, RawResponse: "{}"},
		"reserva tres": {Candidates: []ReservationCandidate{candidate}, RawResponse: "{}"},
	}}
	svc := newIntakeFixture(emails, reservations, parser, &fakeMailer{})

	batch, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("a single item's store failure must not abort the batch: %v", err)
	}
	if batch.Processed != 3 {
		t.Fatalf("processed = %d, want 3", batch.Processed)
	}

	wantStatus := []models.EmailStatus{
		models.EmailStatusProcessed,
		models.EmailStatusFailed,
		models.EmailStatusProcessed,
	}
	for i, want := range wantStatus {
		if got := emails.byID(uint(i + 1)).Status; got != want {
			t.Errorf("email %d status = %s, want %s", i+1, got, want)
		}
	}

	if len(reservations.rows) != 2 {
		t.Errorf("stored reservations = %d, want 2", len(reservations.rows))
	}
}

func TestAdminCommandRoutedBeforeExtraction(t *testing.T) {
	email := pendingEmail(1, "admin@club.cl", "LIST")
	emails := &fakeEmailStore{emails: []*models.EmailMessage{email}}
	parser := &fakeParser{}
	mailer := &fakeMailer{}
	svc := newIntakeFixture(emails, &fakeReservationStore{}, parser, mailer)

	batch, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.Results[0].AdminCommand != CommandList {
		t.Errorf("result = %+v, want admin list", batch.Results[0])
	}
	if len(parser.calls) != 0 {
		t.Error("admin commands must not reach the extractor")
	}
	if email.Status != models.EmailStatusProcessed {
		t.Errorf("email status = %s, want processed", email.Status)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].subject != "Reservas pendientes" {
		t.Errorf("expected admin list reply, got %+v", mailer.sent)
	}
}

func TestNonCommandFromAdminFallsThroughToExtraction(t *testing.T) {
	body := "Quiero reservar el viernes de 18:00 a 19:00"
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "admin@club.cl", body),
	}}
	parser := &fakeParser{}
	svc := newIntakeFixture(emails, &fakeReservationStore{}, parser, &fakeMailer{})

	if _, err := svc.ProcessPending(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parser.calls) != 1 {
		t.Fatalf("expected extraction call, got %d", len(parser.calls))
	}
}

func TestAnchorDateComesFromInjectedClock(t *testing.T) {
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "socio@club.cl", "hola"),
	}}
	parser := &fakeParser{}
	svc := newIntakeFixture(emails, &fakeReservationStore{}, parser, &fakeMailer{})

	if _, err := svc.ProcessPending(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	if len(parser.calls) != 1 || !parser.calls[0].now.Equal(want) {
		t.Errorf("parser anchor = %v, want %v", parser.calls, want)
	}
}

func TestBatchLimitIsRespected(t *testing.T) {
	emails := &fakeEmailStore{emails: []*models.EmailMessage{
		pendingEmail(1, "a@club.cl", "uno"),
		pendingEmail(2, "b@club.cl", "dos"),
		pendingEmail(3, "c@club.cl", "tres"),
	}}
	svc := newIntakeFixture(emails, &fakeReservationStore{}, &fakeParser{}, &fakeMailer{})

	batch, err := svc.ProcessPending(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Processed != 2 {
		t.Errorf("processed = %d, want 2", batch.Processed)
	}
	if emails.byID(3).Status != models.EmailStatusPending {
		t.Error("third email should stay pending for the next firing")
	}
}

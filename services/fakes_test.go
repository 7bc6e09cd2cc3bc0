package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/models"
)

// In-memory fakes for the store and provider interfaces.

type fakeEmailStore struct {
	emails     []*models.EmailMessage
	pendingErr error
}

func (f *fakeEmailStore) Pending(ctx context.Context, limit int) ([]models.EmailMessage, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []models.EmailMessage
	for _, e := range f.emails {
		if e.Status == models.EmailStatusPending {
			out = append(out, *e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeEmailStore) MarkProcessed(ctx context.Context, id uint) (bool, error) {
	return f.transition(id, models.EmailStatusProcessed, "")
}

func (f *fakeEmailStore) MarkFailed(ctx context.Context, id uint, errMsg string) (bool, error) {
	return f.transition(id, models.EmailStatusFailed, errMsg)
}

func (f *fakeEmailStore) transition(id uint, status models.EmailStatus, errMsg string) (bool, error) {
	for _, e := range f.emails {
		if e.ID == id {
			if e.Status != models.EmailStatusPending {
				return false, nil
			}
			e.Status = status
			e.ErrorMessage = errMsg
			now := time.Now()
			e.ProcessedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEmailStore) byID(id uint) *models.EmailMessage {
	for _, e := range f.emails {
		if e.ID == id {
			return e
		}
	}
	return nil
}

type fakeReservationStore struct {
	rows         []*models.Reservation
	createErrFor map[uint]error
	pendingErr   error
	deleted      []string
}

func (f *fakeReservationStore) CreateBatch(ctx context.Context, reservations []models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	if err := f.createErrFor[reservations[0].EmailID]; err != nil {
		return err
	}
	for i := range reservations {
		r := reservations[i]
		if r.ID == "" {
			r.ID = fmt.Sprintf("fake-%d", len(f.rows)+1)
		}
		f.rows = append(f.rows, &r)
	}
	return nil
}

func (f *fakeReservationStore) Pending(ctx context.Context) ([]models.Reservation, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []models.Reservation
	for _, r := range f.rows {
		if r.Status == models.ReservationStatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservationDate != out[j].ReservationDate {
			return out[i].ReservationDate < out[j].ReservationDate
		}
		return out[i].InitialTime < out[j].InitialTime
	})
	return out, nil
}

func (f *fakeReservationStore) MarkSent(ctx context.Context, id string, providerSID string) (bool, error) {
	for _, r := range f.rows {
		if r.ID == id {
			if r.Status != models.ReservationStatusPending {
				return false, nil
			}
			r.Status = models.ReservationStatusSent
			r.ProviderSID = providerSID
			now := time.Now()
			r.SentAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationStore) MarkFailed(ctx context.Context, id string, errMsg string) (bool, error) {
	for _, r := range f.rows {
		if r.ID == id {
			if r.Status != models.ReservationStatusPending {
				return false, nil
			}
			r.Status = models.ReservationStatusFailed
			r.ErrorMessage = errMsg
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationStore) DeleteByIDs(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		f.deleted = append(f.deleted, id)
	}
	var kept []*models.Reservation
	for _, r := range f.rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeReservationStore) byID(id string) *models.Reservation {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type sentMail struct {
	to      string
	subject string
	text    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, text: text})
	return fmt.Sprintf("mail-%d", len(f.sent)), nil
}

type chatCall struct {
	to          string
	body        string
	templateSID string
	vars        map[string]string
}

type fakeChat struct {
	calls []chatCall
	// errs are consumed one per call, nil entries mean success; an
	// exhausted slice always succeeds.
	errs []error
}

func (f *fakeChat) next() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeChat) SendText(ctx context.Context, to, body string) (string, error) {
	if err := f.next(); err != nil {
		return "", err
	}
	f.calls = append(f.calls, chatCall{to: to, body: body})
	return fmt.Sprintf("SM%03d", len(f.calls)), nil
}

func (f *fakeChat) SendTemplate(ctx context.Context, to, templateSID string, variables map[string]string) (string, error) {
	if err := f.next(); err != nil {
		return "", err
	}
	f.calls = append(f.calls, chatCall{to: to, templateSID: templateSID, vars: variables})
	return fmt.Sprintf("SM%03d", len(f.calls)), nil
}

type parseCall struct {
	body        string
	senderEmail string
	senderName  string
	now         time.Time
}

type fakeParser struct {
	calls   []parseCall
	results map[string]*ParseResult
	errs    map[string]error
}

func (f *fakeParser) ParseReservations(ctx context.Context, body, senderEmail, senderName string, now time.Time) (*ParseResult, error) {
	f.calls = append(f.calls, parseCall{body: body, senderEmail: senderEmail, senderName: senderName, now: now})
	if err := f.errs[body]; err != nil {
		return nil, err
	}
	if result := f.results[body]; result != nil {
		return result, nil
	}
	return &ParseResult{}, nil
}

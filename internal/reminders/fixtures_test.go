package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	"github.com/wolfman30/homevisit-scheduler/internal/events"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/internal/notify"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// 2026-03-02 is a Monday.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.EmailMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notify.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.AppointmentEventV1
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.AppointmentEventV1) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// failingRepo overrides selected calls of a working repository.
type failingRepo struct {
	appointments.Repository
	listErr       error
	transitionErr error
	transitionNo  bool
}

func (r *failingRepo) ListBetween(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Repository.ListBetween(ctx, from, to)
}

func (r *failingRepo) ListPendingBefore(ctx context.Context, t time.Time) ([]appointments.Appointment, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Repository.ListPendingBefore(ctx, t)
}

func (r *failingRepo) TransitionStatus(ctx context.Context, id int64, from, to appointments.Status, now time.Time) (bool, error) {
	if r.transitionErr != nil {
		return false, r.transitionErr
	}
	if r.transitionNo {
		return false, nil
	}
	return r.Repository.TransitionStatus(ctx, id, from, to, now)
}

var errBoom = errors.New("boom")

type fixture struct {
	repo   *appointments.MemoryRepository
	ids    *identity.MemoryStore
	sender *recordingSender
	pub    *recordingPublisher
	now    time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		repo:   appointments.NewMemoryRepository(),
		ids:    identity.NewMemoryStore(),
		sender: &recordingSender{},
		pub:    &recordingPublisher{},
		now:    now,
	}
	f.ids.PutPatient(identity.Patient{User: identity.User{
		ID: 1, LastName: "Diop", FirstName: "Awa", Enabled: true,
		Contact: identity.Contact{Email: "awa@example.sn"},
	}})
	f.ids.PutPatient(identity.Patient{User: identity.User{ID: 2, LastName: "Fall", FirstName: "Modou", Enabled: true}})
	return f
}

func (f *fixture) seed(t *testing.T, patientID, professionalID int64, ts time.Time, status appointments.Status) appointments.Appointment {
	t.Helper()
	a := appointments.Appointment{PatientID: patientID, ProfessionalID: professionalID, ScheduledAt: ts, Status: status, CreatedAt: f.now, UpdatedAt: f.now}
	if err := f.repo.Create(context.Background(), &a); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return a
}

func (f *fixture) opts() []Option {
	return []Option{
		WithClock(func() time.Time { return f.now }),
		WithPublisher(f.pub),
		WithLogger(logging.New("error")),
	}
}

func (f *fixture) dispatcher(repo appointments.Repository, sender notify.EmailSender) *Dispatcher {
	return NewDispatcher(repo, f.ids, sender, NewStoreLedger(f.repo), f.opts()...)
}

package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/wolfman30/homevisit-scheduler/internal/events"
	"github.com/wolfman30/homevisit-scheduler/internal/geo"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// monday is 2026-03-02, a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(dayOffset, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+dayOffset, hour, minute, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

var (
	dakarPlateau = geo.Point{Lat: 14.6692, Lon: -17.4380}
	almadies     = geo.Point{Lat: 14.7450, Lon: -17.5130}
	thies        = geo.Point{Lat: 14.7910, Lon: -16.9359}
	saintLouis   = geo.Point{Lat: 16.0326, Lon: -16.4818}
)

type recordingPublisher struct {
	events []events.AppointmentEventV1
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.AppointmentEventV1) error {
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) types() []events.Type {
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	repo *MemoryRepository
	ids  *identity.MemoryStore
	pub  *recordingPublisher
	svc  *Service
	now  time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		repo: NewMemoryRepository(),
		ids:  identity.NewMemoryStore(),
		pub:  &recordingPublisher{},
		now:  now,
	}
	f.ids.PutPatient(identity.Patient{
		User: identity.User{ID: 1, LastName: "Diop", FirstName: "Awa", Enabled: true,
			Contact: identity.Contact{Address: "Rue 10, Plateau", Phone: "+221770000001", Email: "awa@example.sn"}},
		Location: &dakarPlateau,
	})
	f.ids.PutPatient(identity.Patient{
		User: identity.User{ID: 2, LastName: "Fall", FirstName: "Modou", Enabled: true},
	})
	f.ids.PutPatient(identity.Patient{
		User:     identity.User{ID: 3, LastName: "Gueye", FirstName: "Khady", Enabled: true},
		Location: &saintLouis,
	})
	f.ids.PutProfessional(identity.Professional{
		User:      identity.User{ID: 10, LastName: "Ndiaye", FirstName: "Fatou", Enabled: true},
		Specialty: "Cardiologue", Rate: 15000, Location: &almadies,
	})
	f.ids.PutProfessional(identity.Professional{
		User:      identity.User{ID: 11, LastName: "Sow", FirstName: "Ibrahima", Enabled: true},
		Specialty: "Infirmier", Rate: 8000, Location: &thies,
	})
	f.ids.PutProfessional(identity.Professional{
		User:      identity.User{ID: 12, LastName: "Ba", FirstName: "Oumar", Enabled: true},
		Specialty: "Cardiologue", Rate: 20000,
	})
	f.svc = NewService(f.repo, f.ids,
		WithClock(func() time.Time { return f.now }),
		WithPublisher(f.pub),
		WithLogger(logging.New("error")),
	)
	return f
}

// seed inserts an appointment directly into the store.
func (f *fixture) seed(t *testing.T, patientID, professionalID int64, ts time.Time, status Status) Appointment {
	t.Helper()
	a := Appointment{PatientID: patientID, ProfessionalID: professionalID, ScheduledAt: ts, Status: status, CreatedAt: f.now, UpdatedAt: f.now}
	if err := f.repo.Create(context.Background(), &a); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return a
}

// racingRepo runs interleave right after a Get returns, standing in for the
// reminder scheduler writing between a request's read and its write.
type racingRepo struct {
	*MemoryRepository
	interleave func(read Appointment)
	// times bounds how often interleave runs; zero means every Get.
	times int
	runs  int
}

func (r *racingRepo) Get(ctx context.Context, id int64) (*Appointment, error) {
	a, err := r.MemoryRepository.Get(ctx, id)
	if err == nil && r.interleave != nil && (r.times == 0 || r.runs < r.times) {
		r.runs++
		r.interleave(*a)
	}
	return a, err
}

func (f *fixture) serviceOver(repo Repository) *Service {
	return NewService(repo, f.ids,
		WithClock(func() time.Time { return f.now }),
		WithPublisher(f.pub),
		WithLogger(logging.New("error")),
	)
}

package appointments

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/homevisit-scheduler/internal/events"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/internal/observability/metrics"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

var appointmentsTracer = otel.Tracer("homevisit.internal.appointments")

// DefaultRouteSeed seeds route clustering when no seed is configured.
const DefaultRouteSeed uint64 = 42

// Service is the appointment lifecycle manager and the read side built on
// the same store (search, slots, routes, statistics).
type Service struct {
	repo         Repository
	identities   identity.Store
	availability *Availability
	matcher      *Matcher
	publisher    events.Publisher
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
	now          func() time.Time
	loc          *time.Location
	routeSeed    uint64
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(l *logging.Logger) Option { return func(s *Service) { s.logger = l } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithMetrics(m *metrics.SchedulingMetrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock replaces time.Now. Tests pin it.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the wall-clock location for working hours, slots and weeks.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithRouteSeed(seed uint64) Option { return func(s *Service) { s.routeSeed = seed } }

// NewService wires the lifecycle manager.
func NewService(repo Repository, identities identity.Store, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if identities == nil {
		panic("appointments: identity store required")
	}
	s := &Service{
		repo:       repo,
		identities: identities,
		publisher:  events.Nop{},
		now:        time.Now,
		loc:        time.UTC,
		routeSeed:  DefaultRouteSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	s.availability = NewAvailability(repo, s.loc)
	s.matcher = NewMatcher(identities, s.availability)
	return s
}

// Location is the wall-clock location used for scheduling rules.
func (s *Service) Location() *time.Location { return s.loc }

// Availability exposes the conflict engine used by the service.
func (s *Service) Availability() *Availability { return s.availability }

// IsAvailable reports whether the professional can take ts.
func (s *Service) IsAvailable(ctx context.Context, professionalID int64, ts time.Time) (bool, error) {
	return s.availability.IsAvailable(ctx, professionalID, ts)
}

// FindAvailableProfessional delegates to the matcher.
func (s *Service) FindAvailableProfessional(ctx context.Context, ts time.Time, specialty *string) (*identity.Professional, error) {
	return s.matcher.FindAvailableProfessional(ctx, ts, specialty)
}

// AvailableSlots lists the free slots of an existing professional on day.
func (s *Service) AvailableSlots(ctx context.Context, professionalID int64, day time.Time) (iter.Seq[time.Time], error) {
	if _, err := s.identities.ProfessionalByID(ctx, professionalID); err != nil {
		return nil, identityError("available slots", err)
	}
	return s.availability.EnumerateSlots(ctx, professionalID, day)
}

// Create books a PENDING appointment. A professional supplied by id is
// taken as-is, without an availability check; the store still refuses an
// exact double booking with ErrSlotTaken.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*View, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()

	view, err := s.create(ctx, req)
	s.metrics.ObserveOperation("create", err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.annotate(span, &view.Appointment)
	s.logger.Info("appointment created",
		"appointment_id", view.ID,
		"patient_id", view.PatientID,
		"professional_id", view.ProfessionalID,
		"scheduled_at", view.ScheduledAt,
	)
	return view, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*View, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	patient, err := s.identities.FindPatientByName(ctx, req.PatientLastName, req.PatientFirstName)
	if err != nil {
		return nil, identityError("create", err)
	}

	var pro *identity.Professional
	if req.ProfessionalID != nil {
		pro, err = s.identities.ProfessionalByID(ctx, *req.ProfessionalID)
		if err != nil {
			return nil, identityError("create", err)
		}
	} else {
		pro, err = s.matcher.FindAvailableProfessional(ctx, req.ScheduledAt, req.Specialty)
		if err != nil {
			return nil, fmt.Errorf("appointments: create: %w", err)
		}
	}

	now := s.now()
	a := &Appointment{
		PatientID:      patient.ID,
		ProfessionalID: pro.ID,
		ScheduledAt:    req.ScheduledAt.In(s.loc),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, storeError("create", err)
	}
	s.publish(ctx, events.AppointmentCreated, a)
	return &View{Appointment: *a, Patient: summarizePatient(patient), Professional: summarizeProfessional(pro)}, nil
}

// Cancel marks the appointment CANCELLED. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id int64) (*View, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("homevisit.appointment_id", id))

	a, changed, err := s.write(ctx, "cancel", id, func(a *Appointment) bool {
		if a.Status == StatusCancelled {
			return false
		}
		a.Status = StatusCancelled
		return true
	})
	s.metrics.ObserveOperation("cancel", err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if changed {
		s.publish(ctx, events.AppointmentCancelled, a)
		s.logger.Info("appointment cancelled", "appointment_id", id)
	}
	return s.hydrateOne(ctx, a)
}

// Modify applies the fields set in req.
func (s *Service) Modify(ctx context.Context, id int64, req ModifyRequest) (*View, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.modify")
	defer span.End()
	span.SetAttributes(attribute.Int64("homevisit.appointment_id", id))

	a, err := s.modify(ctx, id, req)
	s.metrics.ObserveOperation("modify", err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("appointment modified", "appointment_id", id, "status", a.Status, "scheduled_at", a.ScheduledAt)
	return s.hydrateOne(ctx, a)
}

func (s *Service) modify(ctx context.Context, id int64, req ModifyRequest) (*Appointment, error) {
	var status Status
	if req.Status != nil {
		parsed, err := ParseStatus(*req.Status)
		if err != nil {
			return nil, fmt.Errorf("appointments: modify: %w", err)
		}
		status = parsed
	}
	var proID int64
	if req.ProfessionalID != nil {
		pro, err := s.identities.ProfessionalByID(ctx, *req.ProfessionalID)
		if err != nil {
			return nil, identityError("modify", err)
		}
		proID = pro.ID
	}

	// Only the fields present in req are applied, so a concurrent status
	// change survives a reschedule and the reverse.
	a, _, err := s.write(ctx, "modify", id, func(a *Appointment) bool {
		if status != "" {
			a.Status = status
		}
		if req.ScheduledAt != nil {
			a.ScheduledAt = req.ScheduledAt.In(s.loc)
		}
		if proID != 0 {
			a.ProfessionalID = proID
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AppointmentModified, a)
	return a, nil
}

// maxWriteAttempts bounds re-reads when the scheduler or another request
// updates the row between our read and write.
const maxWriteAttempts = 3

// write loads id, lets apply mutate it and stores the result guarded by the
// updated_at that was read. apply returning false skips the write.
func (s *Service) write(ctx context.Context, op string, id int64, apply func(*Appointment) bool) (*Appointment, bool, error) {
	for attempt := 1; ; attempt++ {
		a, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, false, storeError(op, err)
		}
		if !apply(a) {
			return a, false, nil
		}
		prev := a.UpdatedAt
		a.UpdatedAt = s.now()
		err = s.repo.Update(ctx, a, prev)
		if err == nil {
			return a, true, nil
		}
		if !errors.Is(err, ErrConflict) || attempt == maxWriteAttempts {
			return nil, false, storeError(op, err)
		}
		s.logger.Debug("appointments: concurrent update, retrying", "op", op, "appointment_id", id, "attempt", attempt)
	}
}

// Get returns one appointment projection.
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError("get", err)
	}
	return s.hydrateOne(ctx, a)
}

// ListByPatient returns the patient's appointments by ascending timestamp.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]View, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, storeError("list by patient", err)
	}
	return s.hydrate(ctx, items)
}

// ListByProfessional returns the professional's appointments by ascending timestamp.
func (s *Service) ListByProfessional(ctx context.Context, professionalID int64) ([]View, error) {
	items, err := s.repo.ListByProfessional(ctx, professionalID)
	if err != nil {
		return nil, storeError("list by professional", err)
	}
	return s.hydrate(ctx, items)
}

func (s *Service) hydrateOne(ctx context.Context, a *Appointment) (*View, error) {
	views, err := s.hydrate(ctx, []Appointment{*a})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) hydrate(ctx context.Context, items []Appointment) ([]View, error) {
	views := make([]View, len(items))
	if len(items) == 0 {
		return views, nil
	}
	patientIDs := make([]int64, 0, len(items))
	proIDs := make([]int64, 0, len(items))
	for _, a := range items {
		patientIDs = append(patientIDs, a.PatientID)
		proIDs = append(proIDs, a.ProfessionalID)
	}
	patients, err := s.identities.PatientsByIDs(ctx, patientIDs)
	if err != nil {
		return nil, identityError("load patients", err)
	}
	pros, err := s.identities.ProfessionalsByIDs(ctx, proIDs)
	if err != nil {
		return nil, identityError("load professionals", err)
	}
	for i, a := range items {
		views[i] = View{
			Appointment:  a,
			Patient:      summarizePatient(patients[a.PatientID]),
			Professional: summarizeProfessional(pros[a.ProfessionalID]),
		}
	}
	return views, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, a *Appointment) {
	evt := events.NewAppointmentEvent(typ, a.ID, a.PatientID, a.ProfessionalID, a.ScheduledAt, string(a.Status), s.now())
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("appointments: failed to publish event", "type", typ, "appointment_id", a.ID, "error", err)
	}
}

func (s *Service) annotate(span trace.Span, a *Appointment) {
	span.SetAttributes(
		attribute.Int64("homevisit.appointment_id", a.ID),
		attribute.Int64("homevisit.professional_id", a.ProfessionalID),
		attribute.String("homevisit.status", string(a.Status)),
	)
}

// identityError keeps not-found errors visible to callers and classifies
// everything else as a dependency failure.
func identityError(op string, err error) error {
	if errors.Is(err, identity.ErrPatientNotFound) || errors.Is(err, identity.ErrProfessionalNotFound) {
		return fmt.Errorf("appointments: %s: %w", op, err)
	}
	return fmt.Errorf("appointments: %s: %w: %w", op, ErrDependency, err)
}

func storeError(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrConflict) {
		return fmt.Errorf("appointments: %s: %w", op, err)
	}
	return fmt.Errorf("appointments: %s: %w: %w", op, ErrDependency, err)
}

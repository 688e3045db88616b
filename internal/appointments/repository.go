package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CountFilter narrows Count. Zero values mean "any".
type CountFilter struct {
	ProfessionalID int64
	From, To       time.Time
	Status         Status
}

// Repository is the appointment store. Every list is ordered by
// scheduled_at ascending, then id. Implementations must reject a second
// non-cancelled appointment for the same professional and timestamp with
// ErrSlotTaken.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	// Update writes professional, timestamp, status and updated_at only if
	// the stored updated_at still equals prev; otherwise ErrConflict.
	// reminder_sent_at is never taken from a: the stored value is kept
	// unless the timestamp moved, in which case it is cleared. a is
	// refreshed with the resulting value.
	Update(ctx context.Context, a *Appointment, prev time.Time) error
	Get(ctx context.Context, id int64) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]Appointment, error)
	ListByProfessional(ctx context.Context, professionalID int64) ([]Appointment, error)
	// ListBetween and ListByProfessionalBetween include both bounds.
	ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	ListByProfessionalBetween(ctx context.Context, professionalID int64, from, to time.Time) ([]Appointment, error)
	ListByProfessionalSince(ctx context.Context, professionalID int64, from time.Time) ([]Appointment, error)
	// ListPendingBefore returns PENDING appointments strictly before t.
	ListPendingBefore(ctx context.Context, t time.Time) ([]Appointment, error)
	// ActiveAt reports whether a non-cancelled appointment holds the exact timestamp.
	ActiveAt(ctx context.Context, professionalID int64, ts time.Time) (bool, error)
	Count(ctx context.Context, f CountFilter) (int64, error)
	// TransitionStatus moves id from one status to another only if it is
	// still in from. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
	// MarkReminded stamps reminder_sent_at if it is unset and reports
	// whether this call set it.
	MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error)
	ClearReminded(ctx context.Context, id int64) error
}

// MemoryRepository keeps appointments in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Appointment
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]Appointment)}
}

func (r *MemoryRepository) Create(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slotTakenLocked(a.ProfessionalID, a.ScheduledAt, 0, a.Status) {
		return ErrSlotTaken
	}
	r.nextID++
	a.ID = r.nextID
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, a *Appointment, prev time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.UpdatedAt.Equal(prev) {
		return ErrConflict
	}
	if r.slotTakenLocked(a.ProfessionalID, a.ScheduledAt, a.ID, a.Status) {
		return ErrSlotTaken
	}
	a.ReminderSentAt = stored.ReminderSentAt
	if !stored.ScheduledAt.Equal(a.ScheduledAt) {
		a.ReminderSentAt = nil
	}
	a.CreatedAt = stored.CreatedAt
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryRepository) slotTakenLocked(professionalID int64, ts time.Time, self int64, status Status) bool {
	if status == StatusCancelled {
		return false
	}
	for id, other := range r.items {
		if id == self || other.Status == StatusCancelled {
			continue
		}
		if other.ProfessionalID == professionalID && other.ScheduledAt.Equal(ts) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) filter(keep func(Appointment) bool) []Appointment {
	r.mu.RLock()
	out := []Appointment{}
	for _, a := range r.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func (r *MemoryRepository) ListByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *MemoryRepository) ListByProfessional(ctx context.Context, professionalID int64) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.ProfessionalID == professionalID }), nil
}

func (r *MemoryRepository) ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return within(a.ScheduledAt, from, to) }), nil
}

func (r *MemoryRepository) ListByProfessionalBetween(ctx context.Context, professionalID int64, from, to time.Time) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool {
		return a.ProfessionalID == professionalID && within(a.ScheduledAt, from, to)
	}), nil
}

func (r *MemoryRepository) ListByProfessionalSince(ctx context.Context, professionalID int64, from time.Time) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool {
		return a.ProfessionalID == professionalID && !a.ScheduledAt.Before(from)
	}), nil
}

func (r *MemoryRepository) ListPendingBefore(ctx context.Context, t time.Time) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool {
		return a.Status == StatusPending && a.ScheduledAt.Before(t)
	}), nil
}

func (r *MemoryRepository) ActiveAt(ctx context.Context, professionalID int64, ts time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slotTakenLocked(professionalID, ts, 0, StatusPending), nil
}

func (r *MemoryRepository) Count(ctx context.Context, f CountFilter) (int64, error) {
	matches := r.filter(func(a Appointment) bool {
		if f.ProfessionalID != 0 && a.ProfessionalID != f.ProfessionalID {
			return false
		}
		if !f.From.IsZero() && a.ScheduledAt.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && a.ScheduledAt.After(f.To) {
			return false
		}
		return f.Status == "" || a.Status == f.Status
	})
	return int64(len(matches)), nil
}

func (r *MemoryRepository) TransitionStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = at
	r.items[id] = a
	return true, nil
}

func (r *MemoryRepository) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.ReminderSentAt != nil {
		return false, nil
	}
	a.ReminderSentAt = &at
	r.items[id] = a
	return true, nil
}

func (r *MemoryRepository) ClearReminded(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	a.ReminderSentAt = nil
	r.items[id] = a
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

package appointments

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// Working hours apply to ad-hoc bookings; slot enumeration uses its own
// narrower window. Both are fixed for every professional.
const (
	workdayStartHour = 8
	workdayEndHour   = 18

	slotFirstHour = 9
	slotLastHour  = 17
	slotStep      = 30 * time.Minute
)

// WithinWorkingHours reports whether ts falls Monday to Friday with an
// hour of day in [8, 18]. Any minute of hour 18 is accepted.
func WithinWorkingHours(ts time.Time) bool {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := ts.Hour()
	return h >= workdayStartHour && h <= workdayEndHour
}

// Availability answers "can this professional take this timestamp".
type Availability struct {
	repo Repository
	loc  *time.Location
}

// NewAvailability evaluates wall-clock rules in loc (UTC when nil).
func NewAvailability(repo Repository, loc *time.Location) *Availability {
	if loc == nil {
		loc = time.UTC
	}
	return &Availability{repo: repo, loc: loc}
}

// IsWithinWorkingHours applies WithinWorkingHours in the configured location.
func (a *Availability) IsWithinWorkingHours(ts time.Time) bool {
	return WithinWorkingHours(ts.In(a.loc))
}

// HasConflict reports whether a non-cancelled appointment of the
// professional sits at exactly ts.
func (a *Availability) HasConflict(ctx context.Context, professionalID int64, ts time.Time) (bool, error) {
	taken, err := a.repo.ActiveAt(ctx, professionalID, ts)
	if err != nil {
		return false, fmt.Errorf("%w: conflict check: %w", ErrDependency, err)
	}
	return taken, nil
}

// IsAvailable is IsWithinWorkingHours and not HasConflict.
func (a *Availability) IsAvailable(ctx context.Context, professionalID int64, ts time.Time) (bool, error) {
	if !a.IsWithinWorkingHours(ts) {
		return false, nil
	}
	conflict, err := a.HasConflict(ctx, professionalID, ts)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

// EnumerateSlots yields the free half-hour slots from 09:00 to 17:00 on
// day's calendar date. Bookings are read once; the returned sequence can
// be ranged over any number of times.
func (a *Availability) EnumerateSlots(ctx context.Context, professionalID int64, day time.Time) (iter.Seq[time.Time], error) {
	y, m, d := day.In(a.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, a.loc)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)

	booked, err := a.repo.ListByProfessionalBetween(ctx, professionalID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate slots: %w", ErrDependency, err)
	}
	occupied := make(map[int64]struct{}, len(booked))
	for _, b := range booked {
		if b.Status != StatusCancelled {
			occupied[b.ScheduledAt.UnixNano()] = struct{}{}
		}
	}

	slots := int((slotLastHour-slotFirstHour)*time.Hour/slotStep) + 1
	return func(yield func(time.Time) bool) {
		for i := 0; i < slots; i++ {
			slot := time.Date(y, m, d, slotFirstHour, i*int(slotStep/time.Minute), 0, 0, a.loc)
			if _, taken := occupied[slot.UnixNano()]; taken {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}, nil
}

package appointments

import (
	"context"
	"math"
	"time"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
)

// Period is an inclusive time window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeeklyStats summarizes a professional's current week.
type WeeklyStats struct {
	ProfessionalID   int64   `json:"professional_id"`
	Total            int64   `json:"total"`
	Cancelled        int64   `json:"cancelled"`
	CancellationRate float64 `json:"cancellation_rate"`
	Period           Period  `json:"period"`
}

// WeekOf returns Monday 00:00:00.000 through Sunday 23:59:59.999 of the
// week containing t, in loc. Sunday belongs to the week that began the
// previous Monday.
func WeekOf(t time.Time, loc *time.Location) Period {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	monday := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	sunday := time.Date(y, m, d-offset+6, 23, 59, 59, int(999*time.Millisecond), loc)
	return Period{Start: monday, End: sunday}
}

// CancellationRate is cancelled/total*100 rounded to two decimals, 0 when
// total is 0.
func CancellationRate(cancelled, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(cancelled)/float64(total)*100*100) / 100
}

// WeeklyStats counts the professional's appointments this week and how
// many were cancelled.
func (s *Service) WeeklyStats(ctx context.Context, professionalID int64) (*WeeklyStats, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.weekly_stats")
	defer span.End()

	week := WeekOf(s.now(), s.loc)
	filter := CountFilter{ProfessionalID: professionalID, From: week.Start, To: week.End}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		err = storeError("weekly stats", err)
		span.RecordError(err)
		return nil, err
	}
	filter.Status = StatusCancelled
	cancelled, err := s.repo.Count(ctx, filter)
	if err != nil {
		err = storeError("weekly stats", err)
		span.RecordError(err)
		return nil, err
	}
	return &WeeklyStats{
		ProfessionalID:   professionalID,
		Total:            total,
		Cancelled:        cancelled,
		CancellationRate: CancellationRate(cancelled, total),
		Period:           week,
	}, nil
}

// PatientMapEntry places one upcoming visit on a map.
type PatientMapEntry struct {
	AppointmentID int64     `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        Status    `json:"status"`
	Address       string    `json:"address"`
	Phone         string    `json:"phone"`
}

// PatientMap lists the professional's upcoming visits with patient location
// and contact details. Coordinates are null when the patient has none.
func (s *Service) PatientMap(ctx context.Context, professionalID int64) ([]PatientMapEntry, error) {
	if _, err := s.identities.ProfessionalByID(ctx, professionalID); err != nil {
		return nil, identityError("patient map", err)
	}
	upcoming, err := s.repo.ListByProfessionalSince(ctx, professionalID, s.now())
	if err != nil {
		return nil, storeError("patient map", err)
	}
	ids := make([]int64, 0, len(upcoming))
	for _, a := range upcoming {
		ids = append(ids, a.PatientID)
	}
	patients, err := s.identities.PatientsByIDs(ctx, ids)
	if err != nil {
		return nil, identityError("patient map", err)
	}

	out := make([]PatientMapEntry, 0, len(upcoming))
	for _, a := range upcoming {
		entry := PatientMapEntry{AppointmentID: a.ID, ScheduledAt: a.ScheduledAt, Status: a.Status}
		if p := patients[a.PatientID]; p != nil {
			entry.PatientName = p.DisplayName()
			entry.Address = p.Contact.Address
			entry.Phone = p.Contact.Phone
			if p.Location != nil {
				entry.Latitude, entry.Longitude = coords(*p.Location)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func coords(p geo.Point) (*float64, *float64) {
	lat, lon := p.Lat, p.Lon
	return &lat, &lon
}

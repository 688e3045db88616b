package appointments

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
	StatusCompleted Status = "COMPLETED"
)

// legacyStatuses maps the French labels still found in older clients and
// exports to the canonical statuses. Keys are accent-free.
var legacyStatuses = map[string]Status{
	"EN_ATTENTE": StatusPending,
	"CONFIRME":   StatusConfirmed,
	"ANNULE":     StatusCancelled,
	"NON_HONORE": StatusNoShow,
	"TERMINE":    StatusCompleted,
}

// ParseStatus folds case, accents and separators before matching a status,
// so "annulé", "ANNULE" and "cancelled" all parse to StatusCancelled.
func ParseStatus(raw string) (Status, error) {
	key := normalizeStatus(raw)
	switch s := Status(key); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusNoShow, StatusCompleted:
		return s, nil
	}
	if s, ok := legacyStatuses[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

func normalizeStatus(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(raw))
	if err != nil {
		folded = raw
	}
	folded = strings.NewReplacer(" ", "_", "-", "_").Replace(folded)
	return strings.ToUpper(folded)
}

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusNoShow || s == StatusCompleted
}

// CheckTransition rejects any change away from a terminal status.
func CheckTransition(from, to Status) error {
	if from.Terminal() && from != to {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Appointment is a booked home visit.
type Appointment struct {
	ID             int64      `json:"id"`
	PatientID      int64      `json:"patient_id"`
	ProfessionalID int64      `json:"professional_id"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Status         Status     `json:"status"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PatientSummary is the patient portion of an appointment projection.
type PatientSummary struct {
	ID        int64      `json:"id"`
	LastName  string     `json:"last_name"`
	FirstName string     `json:"first_name"`
	Phone     string     `json:"phone,omitempty"`
	Location  *geo.Point `json:"location,omitempty"`
}

// ProfessionalSummary is the professional portion of an appointment projection.
type ProfessionalSummary struct {
	ID        int64   `json:"id"`
	LastName  string  `json:"last_name"`
	FirstName string  `json:"first_name"`
	Specialty string  `json:"specialty"`
	Rate      float64 `json:"rate"`
}

// View is the projection returned to callers.
type View struct {
	Appointment
	Patient      *PatientSummary      `json:"patient,omitempty"`
	Professional *ProfessionalSummary `json:"professional,omitempty"`
}

func summarizePatient(p *identity.Patient) *PatientSummary {
	if p == nil {
		return nil
	}
	return &PatientSummary{
		ID:        p.ID,
		LastName:  p.LastName,
		FirstName: p.FirstName,
		Phone:     p.Contact.Phone,
		Location:  p.Location,
	}
}

func summarizeProfessional(p *identity.Professional) *ProfessionalSummary {
	if p == nil {
		return nil
	}
	return &ProfessionalSummary{
		ID:        p.ID,
		LastName:  p.LastName,
		FirstName: p.FirstName,
		Specialty: p.Specialty,
		Rate:      p.Rate,
	}
}

// CreateRequest books a visit for a patient identified by name. When
// ProfessionalID is nil a professional is matched, optionally restricted
// to Specialty.
type CreateRequest struct {
	ScheduledAt      time.Time `json:"scheduled_at"`
	PatientLastName  string    `json:"patient_last_name"`
	PatientFirstName string    `json:"patient_first_name"`
	ProfessionalID   *int64    `json:"professional_id,omitempty"`
	Specialty        *string   `json:"specialty,omitempty"`
}

// Validate checks the request shape.
func (r CreateRequest) Validate() error {
	if r.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.PatientLastName) == "" || strings.TrimSpace(r.PatientFirstName) == "" {
		return fmt.Errorf("%w: patient name is required", ErrInvalidRequest)
	}
	return nil
}

// ModifyRequest changes only the fields that are set.
type ModifyRequest struct {
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Status         *string    `json:"status,omitempty"`
	ProfessionalID *int64     `json:"professional_id,omitempty"`
}

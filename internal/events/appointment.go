package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names an appointment lifecycle event.
type Type string

const (
	AppointmentCreated   Type = "appointment.created"
	AppointmentCancelled Type = "appointment.cancelled"
	AppointmentModified  Type = "appointment.modified"
	AppointmentReminded  Type = "appointment.reminded"
	AppointmentNoShow    Type = "appointment.no_show"
)

// AppointmentEventV1 is the payload published for every lifecycle change.
type AppointmentEventV1 struct {
	EventID        string    `json:"event_id"`
	Type           Type      `json:"type"`
	AppointmentID  int64     `json:"appointment_id"`
	PatientID      int64     `json:"patient_id"`
	ProfessionalID int64     `json:"professional_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewAppointmentEvent stamps a fresh event id.
func NewAppointmentEvent(typ Type, appointmentID, patientID, professionalID int64, scheduledAt time.Time, status string, occurredAt time.Time) AppointmentEventV1 {
	return AppointmentEventV1{
		EventID:        uuid.NewString(),
		Type:           typ,
		AppointmentID:  appointmentID,
		PatientID:      patientID,
		ProfessionalID: professionalID,
		ScheduledAt:    scheduledAt,
		Status:         status,
		OccurredAt:     occurredAt,
	}
}

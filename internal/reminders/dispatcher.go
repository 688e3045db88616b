package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	"github.com/wolfman30/homevisit-scheduler/internal/events"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/internal/notify"
)

// ErrMissingContact means the patient has no email address on file.
var ErrMissingContact = errors.New("reminders: patient has no email address")

// Report summarizes one dispatch pass.
type Report struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

// Dispatcher emails patients whose visit falls inside the look-ahead window.
type Dispatcher struct {
	repo       appointments.Repository
	identities identity.Store
	sender     notify.EmailSender
	ledger     Ledger
	options
}

func NewDispatcher(repo appointments.Repository, identities identity.Store, sender notify.EmailSender, ledger Ledger, opts ...Option) *Dispatcher {
	if repo == nil || identities == nil || sender == nil || ledger == nil {
		panic("reminders: dispatcher requires repository, identities, sender and ledger")
	}
	return &Dispatcher{
		repo:       repo,
		identities: identities,
		sender:     sender,
		ledger:     ledger,
		options:    buildOptions(opts),
	}
}

// remindable excludes visits that will not happen (CANCELLED) or already
// did (COMPLETED, NO_SHOW) even when they fall inside the window.
func remindable(s appointments.Status) bool {
	return s == appointments.StatusPending || s == appointments.StatusConfirmed
}

// Dispatch runs one pass over [now, now+window]. Per-appointment failures
// are counted in the report; only a failed listing aborts the pass.
func (d *Dispatcher) Dispatch(ctx context.Context) (Report, error) {
	ctx, span := remindersTracer.Start(ctx, "reminders.dispatch")
	defer span.End()

	now := d.now()
	items, err := d.repo.ListBetween(ctx, now, now.Add(d.window))
	if err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("reminders: dispatch: list: %w", err)
	}

	due := make([]appointments.Appointment, 0, len(items))
	ids := make([]int64, 0, len(items))
	for _, a := range items {
		if remindable(a.Status) {
			due = append(due, a)
			ids = append(ids, a.PatientID)
		}
	}
	report := Report{Scanned: len(due)}
	if len(due) == 0 {
		return report, nil
	}

	patients, err := d.identities.PatientsByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("reminders: dispatch: load patients: %w", err)
	}

	for _, a := range due {
		switch d.remind(ctx, a, patients[a.PatientID], now) {
		case outcomeSent:
			report.Sent++
			d.metrics.ObserveReminder(string(outcomeSent))
		case outcomeSkipped:
			report.Skipped++
			d.metrics.ObserveReminder(string(outcomeSkipped))
		default:
			report.Failed++
			d.metrics.ObserveReminder(string(outcomeFailed))
		}
	}

	span.SetAttributes(
		attribute.Int("homevisit.reminders.scanned", report.Scanned),
		attribute.Int("homevisit.reminders.sent", report.Sent),
	)
	d.logger.Info("reminders: dispatch pass complete",
		"scanned", report.Scanned, "sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (d *Dispatcher) remind(ctx context.Context, a appointments.Appointment, p *identity.Patient, now time.Time) outcome {
	if p == nil || p.Contact.Email == "" {
		d.logger.Warn("reminders: cannot remind patient", "appointment_id", a.ID, "patient_id", a.PatientID, "error", ErrMissingContact)
		return outcomeFailed
	}

	claimed, err := d.ledger.Claim(ctx, a, now)
	if err != nil {
		d.logger.Error("reminders: claim failed", "appointment_id", a.ID, "error", err)
		return outcomeFailed
	}
	if !claimed {
		return outcomeSkipped
	}

	msg := Compose(p, a, d.loc)
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("reminders: send failed", "appointment_id", a.ID, "to", msg.To, "error", err)
		if relErr := d.ledger.Release(ctx, a); relErr != nil {
			d.logger.Error("reminders: release claim failed", "appointment_id", a.ID, "error", relErr)
		}
		return outcomeFailed
	}

	evt := events.NewAppointmentEvent(events.AppointmentReminded, a.ID, a.PatientID, a.ProfessionalID, a.ScheduledAt, string(a.Status), now)
	evt.Message = msg.Body
	if err := d.publisher.Publish(ctx, evt); err != nil {
		d.logger.Warn("reminders: failed to publish event", "appointment_id", a.ID, "error", err)
	}
	d.logger.Info("reminders: reminder sent", "appointment_id", a.ID, "patient_id", a.PatientID)
	return outcomeSent
}

package reminders

import (
	"context"
	"fmt"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	"github.com/wolfman30/homevisit-scheduler/internal/events"
)

// RolloverReport summarizes one no-show pass.
type RolloverReport struct {
	Scanned    int `json:"scanned"`
	RolledOver int `json:"rolled_over"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Rollover marks past PENDING appointments as NO_SHOW.
type Rollover struct {
	repo appointments.Repository
	options
}

func NewRollover(repo appointments.Repository, opts ...Option) *Rollover {
	if repo == nil {
		panic("reminders: rollover requires a repository")
	}
	return &Rollover{repo: repo, options: buildOptions(opts)}
}

// Run transitions every PENDING appointment scheduled before now. The
// update is conditional, so a visit confirmed concurrently is skipped.
func (r *Rollover) Run(ctx context.Context) (RolloverReport, error) {
	ctx, span := remindersTracer.Start(ctx, "reminders.rollover")
	defer span.End()

	now := r.now()
	items, err := r.repo.ListPendingBefore(ctx, now)
	if err != nil {
		span.RecordError(err)
		return RolloverReport{}, fmt.Errorf("reminders: rollover: list: %w", err)
	}

	report := RolloverReport{Scanned: len(items)}
	for _, a := range items {
		changed, err := r.repo.TransitionStatus(ctx, a.ID, appointments.StatusPending, appointments.StatusNoShow, now)
		if err != nil {
			report.Failed++
			r.logger.Error("reminders: rollover failed", "appointment_id", a.ID, "error", err)
			continue
		}
		if !changed {
			report.Skipped++
			continue
		}
		report.RolledOver++
		evt := events.NewAppointmentEvent(events.AppointmentNoShow, a.ID, a.PatientID, a.ProfessionalID, a.ScheduledAt, string(appointments.StatusNoShow), now)
		if err := r.publisher.Publish(ctx, evt); err != nil {
			r.logger.Warn("reminders: failed to publish event", "appointment_id", a.ID, "error", err)
		}
	}

	r.metrics.AddRollovers(report.RolledOver)
	if report.Scanned > 0 {
		r.logger.Info("reminders: rollover pass complete",
			"scanned", report.Scanned, "rolled_over", report.RolledOver, "skipped", report.Skipped, "failed", report.Failed)
	}
	return report, nil
}

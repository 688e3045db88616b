package reminders

import (
	"fmt"
	"html"
	"time"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/internal/notify"
)

// Subject of every reminder email.
const Subject = "Rappel de rendez-vous"

const timestampLayout = "02/01/2006 15:04"

// Compose builds the reminder sent to the patient, with the visit time
// rendered in loc.
func Compose(p *identity.Patient, a appointments.Appointment, loc *time.Location) notify.EmailMessage {
	text := fmt.Sprintf("Bonjour %s, ceci est un rappel pour votre rendez-vous prévu le %s",
		p.LastName, a.ScheduledAt.In(loc).Format(timestampLayout))
	return notify.EmailMessage{
		To:      p.Contact.Email,
		ToName:  p.DisplayName(),
		Subject: Subject,
		Body:    text,
		HTML:    "<p>" + html.EscapeString(text) + "</p>",
	}
}

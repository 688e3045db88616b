package reminders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
)

func TestCompose(t *testing.T) {
	p := &identity.Patient{User: identity.User{
		LastName: "N'Diaye", FirstName: "Aminata",
		Contact: identity.Contact{Email: "aminata@example.sn"},
	}}
	a := appointments.Appointment{ScheduledAt: time.Date(2026, 3, 5, 13, 30, 0, 0, time.UTC)}

	msg := Compose(p, a, time.FixedZone("WAT", 3600))

	want := "Bonjour N'Diaye, ceci est un rappel pour votre rendez-vous prévu le 05/03/2026 14:30"
	assert.Equal(t, "aminata@example.sn", msg.To)
	assert.Equal(t, "N'Diaye Aminata", msg.ToName)
	assert.Equal(t, Subject, msg.Subject)
	assert.Equal(t, want, msg.Body)
	assert.Equal(t, "<p>Bonjour N&#39;Diaye, ceci est un rappel pour votre rendez-vous prévu le 05/03/2026 14:30</p>", msg.HTML)
}

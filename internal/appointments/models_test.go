package appointments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"PENDING", StatusPending},
		{"confirmed", StatusConfirmed},
		{" Cancelled ", StatusCancelled},
		{"no-show", StatusNoShow},
		{"no show", StatusNoShow},
		{"EN_ATTENTE", StatusPending},
		{"Confirmé", StatusConfirmed},
		{"ANNULÉ", StatusCancelled},
		{"annule", StatusCancelled},
		{"non_honoré", StatusNoShow},
		{"terminé", StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "DONE", "PENDINGX"} {
		_, err := ParseStatus(raw)
		assert.ErrorIs(t, err, ErrInvalidStatus, raw)
		assert.ErrorIs(t, err, ErrInvalidRequest, raw)
	}
}

func TestCheckTransition(t *testing.T) {
	assert.NoError(t, CheckTransition(StatusPending, StatusCompleted))
	assert.NoError(t, CheckTransition(StatusConfirmed, StatusCancelled))
	assert.NoError(t, CheckTransition(StatusCancelled, StatusCancelled))
	assert.ErrorIs(t, CheckTransition(StatusCancelled, StatusPending), ErrInvalidTransition)
	assert.ErrorIs(t, CheckTransition(StatusNoShow, StatusConfirmed), ErrInvalidTransition)
	assert.ErrorIs(t, CheckTransition(StatusCompleted, StatusCancelled), ErrInvalidRequest)
}

func TestCreateRequestValidate(t *testing.T) {
	assert.ErrorIs(t, CreateRequest{PatientLastName: "Diop", PatientFirstName: "Awa"}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, CreateRequest{ScheduledAt: at(0, 10, 0), PatientLastName: " "}.Validate(), ErrInvalidRequest)
	assert.NoError(t, CreateRequest{ScheduledAt: at(0, 10, 0), PatientLastName: "Diop", PatientFirstName: "Awa"}.Validate())
}

func TestErrorClasses(t *testing.T) {
	assert.ErrorIs(t, ErrNoProfessionalAvailable, ErrUnavailable)
	assert.ErrorIs(t, ErrSlotTaken, ErrUnavailable)
	assert.NotErrorIs(t, ErrNoProfessionalAvailable, ErrNotFound)
	assert.ErrorIs(t, ErrInvalidSearch, ErrInvalidRequest)
}

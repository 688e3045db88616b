package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		actor   Role
		allowed []Role
		wantErr bool
	}{
		{"patient allowed", RolePatient, []Role{RolePatient}, false},
		{"professional in set", RoleProfessional, []Role{RolePatient, RoleProfessional}, false},
		{"admin excluded", RoleAdmin, []Role{RoleProfessional}, true},
		{"empty set", RoleAdmin, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.allowed...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" pro_sante ")
	require.NoError(t, err)
	assert.Equal(t, RoleProfessional, r)

	_, err = ParseRole("DOCTOR")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestDisplayName(t *testing.T) {
	u := User{LastName: "Diop", FirstName: "Awa"}
	assert.Equal(t, "Diop Awa", u.DisplayName())
}

func TestMemoryStoreLookups(t *testing.T) {
	store := NewMemoryStore()
	store.PutPatient(Patient{User: User{ID: 2, LastName: "Diop", FirstName: "Awa"}})
	store.PutProfessional(Professional{User: User{ID: 9, LastName: "Sow"}, Specialty: "Infirmier"})
	store.PutProfessional(Professional{User: User{ID: 3, LastName: "Ba"}, Specialty: "Cardiologue"})
	store.PutProfessional(Professional{User: User{ID: 5, LastName: "Fall"}, Specialty: "Cardiologue"})

	ctx := context.Background()
	p, err := store.FindPatientByName(ctx, "diop", "AWA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, RolePatient, p.Role)

	_, err = store.FindPatientByName(ctx, "Diop", "Fatou")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	all, err := store.Professionals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 5, 9}, []int64{all[0].ID, all[1].ID, all[2].ID})

	cardio, err := store.ProfessionalsBySpecialty(ctx, "Cardiologue")
	require.NoError(t, err)
	require.Len(t, cardio, 2)
	assert.Equal(t, int64(3), cardio[0].ID)

	none, err := store.ProfessionalsBySpecialty(ctx, "cardiologue")
	require.NoError(t, err)
	assert.Empty(t, none)

	byID, err := store.ProfessionalsByIDs(ctx, []int64{5, 42})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	_, err = store.ProfessionalByID(ctx, 42)
	assert.ErrorIs(t, err, ErrProfessionalNotFound)
}

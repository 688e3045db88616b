package identity

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var patientCols = []string{"id", "last_name", "first_name", "sex", "role", "address", "phone", "email", "enabled", "latitude", "longitude"}
var professionalCols = []string{"id", "last_name", "first_name", "sex", "role", "address", "phone", "email", "enabled", "specialty", "description", "rate", "latitude", "longitude"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestFindPatientByName(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users u JOIN patients p").
		WithArgs("DIOP", "awa").
		WillReturnRows(sqlmock.NewRows(patientCols).
			AddRow(int64(7), "Diop", "Awa", "F", "PATIENT", "Rue 10, Dakar", "+221770000000", "awa@example.sn", true, 14.69, -17.44))

	p, err := store.FindPatientByName(context.Background(), "DIOP", "awa")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, RolePatient, p.Role)
	assert.Equal(t, "awa@example.sn", p.Contact.Email)
	require.NotNil(t, p.Location)
	assert.InDelta(t, 14.69, p.Location.Lat, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPatientByNameMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users u JOIN patients p").
		WithArgs("Nobody", "Here").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindPatientByName(context.Background(), "Nobody", "Here")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestPatientWithoutCoordinates(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users u JOIN patients p").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(patientCols).
			AddRow(int64(3), "Fall", "Modou", "", "PATIENT", "", "", "", true, nil, nil))

	p, err := store.PatientByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, p.Location)
}

func TestPatientsByIDsSkipsQueryWhenEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	out, err := store.PatientsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfessionalsByIDs(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("WHERE u.id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(professionalCols).
			AddRow(int64(1), "Ndiaye", "Fatou", "F", "PRO_SANTE", "", "", "", true, "Cardiologue", "", 15000.0, 14.7, -17.45).
			AddRow(int64(2), "Sow", "Ibrahima", "M", "PRO_SANTE", "", "", "", true, "Infirmier", "", 8000.0, nil, nil))

	out, err := store.ProfessionalsByIDs(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Cardiologue", out[1].Specialty)
	assert.Nil(t, out[2].Location)
}

func TestProfessionalsBySpecialtyOrdersByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("WHERE pr.specialty = \\$1\\s+ORDER BY u.id").
		WithArgs("Cardiologue").
		WillReturnRows(sqlmock.NewRows(professionalCols).
			AddRow(int64(4), "Ba", "Oumar", "M", "PRO_SANTE", "", "", "", true, "Cardiologue", "Cabinet mobile", 20000.0, 14.7, -17.4))

	pros, err := store.ProfessionalsBySpecialty(context.Background(), "Cardiologue")
	require.NoError(t, err)
	require.Len(t, pros, 1)
	assert.Equal(t, int64(4), pros[0].ID)
	assert.Equal(t, "Cabinet mobile", pros[0].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfessionalByIDMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users u JOIN professionals pr").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.ProfessionalByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrProfessionalNotFound)
}

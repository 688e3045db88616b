package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
)

const patientColumns = `
	u.id, u.last_name, u.first_name, COALESCE(u.sex, ''), u.role,
	COALESCE(u.address, ''), COALESCE(u.phone, ''), COALESCE(u.email, ''), u.enabled,
	p.latitude, p.longitude`

const professionalColumns = `
	u.id, u.last_name, u.first_name, COALESCE(u.sex, ''), u.role,
	COALESCE(u.address, ''), COALESCE(u.phone, ''), COALESCE(u.email, ''), u.enabled,
	pr.specialty, COALESCE(pr.description, ''), pr.rate, pr.latitude, pr.longitude`

// PostgresStore reads users and their role extension tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps a database/sql handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("identity: sql db required")
	}
	return &PostgresStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(row scanner) (*Patient, error) {
	var (
		p        Patient
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.LastName, &p.FirstName, &p.Sex, &p.Role,
		&p.Contact.Address, &p.Contact.Phone, &p.Contact.Email, &p.Enabled,
		&lat, &lon); err != nil {
		return nil, err
	}
	p.Location = point(lat, lon)
	return &p, nil
}

func scanProfessional(row scanner) (*Professional, error) {
	var (
		p        Professional
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.LastName, &p.FirstName, &p.Sex, &p.Role,
		&p.Contact.Address, &p.Contact.Phone, &p.Contact.Email, &p.Enabled,
		&p.Specialty, &p.Description, &p.Rate, &lat, &lon); err != nil {
		return nil, err
	}
	p.Location = point(lat, lon)
	return &p, nil
}

func point(lat, lon sql.NullFloat64) *geo.Point {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
}

func (s *PostgresStore) FindPatientByName(ctx context.Context, lastName, firstName string) (*Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+patientColumns+`
		FROM users u JOIN patients p ON p.user_id = u.id
		WHERE lower(u.last_name) = lower($1) AND lower(u.first_name) = lower($2)
		ORDER BY u.id LIMIT 1`, lastName, firstName)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: find patient by name: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) PatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+patientColumns+`
		FROM users u JOIN patients p ON p.user_id = u.id
		WHERE u.id = $1`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: patient by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) PatientsByIDs(ctx context.Context, ids []int64) (map[int64]*Patient, error) {
	out := make(map[int64]*Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT`+patientColumns+`
		FROM users u JOIN patients p ON p.user_id = u.id
		WHERE u.id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("identity: patients by ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("identity: scan patient: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) ProfessionalByID(ctx context.Context, id int64) (*Professional, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+professionalColumns+`
		FROM users u JOIN professionals pr ON pr.user_id = u.id
		WHERE u.id = $1`, id)
	p, err := scanProfessional(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfessionalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: professional by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ProfessionalsByIDs(ctx context.Context, ids []int64) (map[int64]*Professional, error) {
	out := make(map[int64]*Professional, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT`+professionalColumns+`
		FROM users u JOIN professionals pr ON pr.user_id = u.id
		WHERE u.id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("identity: professionals by ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("identity: scan professional: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) ProfessionalsBySpecialty(ctx context.Context, specialty string) ([]Professional, error) {
	return s.listProfessionals(ctx, `SELECT`+professionalColumns+`
		FROM users u JOIN professionals pr ON pr.user_id = u.id
		WHERE pr.specialty = $1
		ORDER BY u.id`, specialty)
}

func (s *PostgresStore) Professionals(ctx context.Context) ([]Professional, error) {
	return s.listProfessionals(ctx, `SELECT`+professionalColumns+`
		FROM users u JOIN professionals pr ON pr.user_id = u.id
		ORDER BY u.id`)
}

func (s *PostgresStore) listProfessionals(ctx context.Context, query string, args ...any) ([]Professional, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("identity: list professionals: %w", err)
	}
	defer rows.Close()

	out := []Professional{}
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("identity: scan professional: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)

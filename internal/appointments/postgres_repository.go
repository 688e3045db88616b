package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised by uq_appointments_professional_slot.
const uniqueViolation = "23505"

// DB is the subset of pgx used by PostgresRepository. *pgxpool.Pool and
// pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = `SELECT id, patient_id, professional_id, scheduled_at, status,
	reminder_sent_at, created_at, updated_at FROM appointments`

const orderBy = ` ORDER BY scheduled_at ASC, id ASC`

// PostgresRepository persists appointments in Postgres.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository wraps a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB accepts any DB implementation.
func NewPostgresRepositoryWithDB(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotTaken
	}
	return fmt.Errorf("appointments: %s: %w", op, err)
}

func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, professional_id, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.PatientID, a.ProfessionalID, a.ScheduledAt, string(a.Status), a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return mapWriteError("create", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *Appointment, prev time.Time) error {
	// SET expressions read the old row, so scheduled_at below is the stored value.
	var sent *time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET professional_id = $2, scheduled_at = $3, status = $4, updated_at = $5,
			reminder_sent_at = CASE WHEN scheduled_at IS DISTINCT FROM $3 THEN NULL ELSE reminder_sent_at END
		WHERE id = $1 AND updated_at = $6
		RETURNING reminder_sent_at`,
		a.ID, a.ProfessionalID, a.ScheduledAt, string(a.Status), a.UpdatedAt, prev,
	).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("appointments: update: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	if err != nil {
		return mapWriteError("update", err)
	}
	a.ReminderSentAt = sent
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	return r.list(ctx, "list by patient", selectColumns+` WHERE patient_id = $1`+orderBy, patientID)
}

func (r *PostgresRepository) ListByProfessional(ctx context.Context, professionalID int64) ([]Appointment, error) {
	return r.list(ctx, "list by professional", selectColumns+` WHERE professional_id = $1`+orderBy, professionalID)
}

func (r *PostgresRepository) ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return r.list(ctx, "list between", selectColumns+` WHERE scheduled_at BETWEEN $1 AND $2`+orderBy, from, to)
}

func (r *PostgresRepository) ListByProfessionalBetween(ctx context.Context, professionalID int64, from, to time.Time) ([]Appointment, error) {
	return r.list(ctx, "list by professional between",
		selectColumns+` WHERE professional_id = $1 AND scheduled_at BETWEEN $2 AND $3`+orderBy,
		professionalID, from, to)
}

func (r *PostgresRepository) ListByProfessionalSince(ctx context.Context, professionalID int64, from time.Time) ([]Appointment, error) {
	return r.list(ctx, "list by professional since",
		selectColumns+` WHERE professional_id = $1 AND scheduled_at >= $2`+orderBy,
		professionalID, from)
}

func (r *PostgresRepository) ListPendingBefore(ctx context.Context, t time.Time) ([]Appointment, error) {
	return r.list(ctx, "list pending before",
		selectColumns+` WHERE status = 'PENDING' AND scheduled_at < $1`+orderBy, t)
}

func (r *PostgresRepository) ActiveAt(ctx context.Context, professionalID int64, ts time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE professional_id = $1 AND scheduled_at = $2 AND status <> 'CANCELLED'
		)`, professionalID, ts).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointments: active at: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Count(ctx context.Context, f CountFilter) (int64, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ProfessionalID != 0 {
		add("professional_id = $%d", f.ProfessionalID)
	}
	if !f.From.IsZero() {
		add("scheduled_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("scheduled_at <= $%d", f.To)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	query := `SELECT COUNT(*) FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("appointments: count: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return false, mapWriteError("transition status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET reminder_sent_at = $2
		WHERE id = $1 AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("appointments: mark reminded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) ClearReminded(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE appointments SET reminder_sent_at = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("appointments: clear reminded: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, op, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: %s: scan: %w", op, err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	if err := row.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.ScheduledAt, &status,
		&a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

var _ Repository = (*PostgresRepository)(nil)

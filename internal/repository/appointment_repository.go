package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// AppointmentRepository encapsulates appointment persistence. Capacity and
// workload are always derived by counting rows, never cached as counters.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	Update(ctx context.Context, appt *domain.Appointment) error
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	GetPendingByCase(ctx context.Context, caseID string) (*domain.Appointment, error)
	// CountForBlock counts non-cancelled appointments bound to a (day, block) slot.
	CountForBlock(ctx context.Context, day time.Time, blockID string) (int, error)
	// CountForTechnicianOnDay counts non-cancelled appointments assigned to the
	// technician on the given day.
	CountForTechnicianOnDay(ctx context.Context, technicianID string, day time.Time) (int, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.Appointment, error)
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository instantiates repository.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

const appointmentColumns = `id, case_id, technician_id, day, block_id, starts_at, ends_at, status, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (case_id, technician_id, day, block_id, starts_at, ends_at, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		appt.CaseID,
		appt.TechnicianID,
		appt.Day,
		appt.BlockID,
		appt.StartsAt,
		appt.EndsAt,
		appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
}

func (r *appointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        UPDATE appointments SET technician_id=$1, status=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, appt.TechnicianID, appt.Status, appt.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	var appt domain.Appointment
	if err := scanAppointment(r.pool.QueryRow(ctx, query, id), &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) GetPendingByCase(ctx context.Context, caseID string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
        WHERE case_id=$1 AND status=$2 ORDER BY created_at DESC LIMIT 1`
	var appt domain.Appointment
	if err := scanAppointment(r.pool.QueryRow(ctx, query, caseID, domain.AppointmentStatusPending), &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) CountForBlock(ctx context.Context, day time.Time, blockID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM appointments
        WHERE day=$1 AND block_id=$2 AND status <> $3`
	var count int
	err := r.pool.QueryRow(ctx, query, day, blockID, domain.AppointmentStatusCancelled).Scan(&count)
	return count, err
}

func (r *appointmentRepository) CountForTechnicianOnDay(ctx context.Context, technicianID string, day time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM appointments
        WHERE technician_id=$1 AND day=$2 AND status <> $3`
	var count int
	err := r.pool.QueryRow(ctx, query, technicianID, day, domain.AppointmentStatusCancelled).Scan(&count)
	return count, err
}

func (r *appointmentRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
        WHERE case_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		var appt domain.Appointment
		if err := scanAppointment(rows, &appt); err != nil {
			return nil, err
		}
		result = append(result, appt)
	}
	return result, rows.Err()
}

type appointmentScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row appointmentScanner, appt *domain.Appointment) error {
	return row.Scan(
		&appt.ID,
		&appt.CaseID,
		&appt.TechnicianID,
		&appt.Day,
		&appt.BlockID,
		&appt.StartsAt,
		&appt.EndsAt,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// FollowUpRepository encapsulates follow-up record persistence.
type FollowUpRepository interface {
	Create(ctx context.Context, rec *domain.FollowUpRecord) error
	Update(ctx context.Context, rec *domain.FollowUpRecord) error
	// GetActiveByCase returns the single active record for the case, or nil
	// when none exists.
	GetActiveByCase(ctx context.Context, caseID string) (*domain.FollowUpRecord, error)
	// ListDue returns active records whose next_due_at has passed.
	ListDue(ctx context.Context, now time.Time) ([]domain.FollowUpRecord, error)
}

type followUpRepository struct {
	pool *pgxpool.Pool
}

// NewFollowUpRepository instantiates repository.
func NewFollowUpRepository(pool *pgxpool.Pool) FollowUpRepository {
	return &followUpRepository{pool: pool}
}

const followUpColumns = `id, case_id, attempts, last_attempt_at, next_due_at, active, outcome, created_at, updated_at`

func (r *followUpRepository) Create(ctx context.Context, rec *domain.FollowUpRecord) error {
	const query = `
        INSERT INTO follow_up_records (case_id, attempts, last_attempt_at, next_due_at, active, outcome)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rec.CaseID,
		rec.Attempts,
		rec.LastAttemptAt,
		rec.NextDueAt,
		rec.Active,
		rec.Outcome,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (r *followUpRepository) Update(ctx context.Context, rec *domain.FollowUpRecord) error {
	const query = `
        UPDATE follow_up_records SET attempts=$1, last_attempt_at=$2, next_due_at=$3,
            active=$4, outcome=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		rec.Attempts,
		rec.LastAttemptAt,
		rec.NextDueAt,
		rec.Active,
		rec.Outcome,
		rec.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *followUpRepository) GetActiveByCase(ctx context.Context, caseID string) (*domain.FollowUpRecord, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_up_records
        WHERE case_id=$1 AND active LIMIT 1`
	var rec domain.FollowUpRecord
	err := scanFollowUp(r.pool.QueryRow(ctx, query, caseID), &rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *followUpRepository) ListDue(ctx context.Context, now time.Time) ([]domain.FollowUpRecord, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_up_records
        WHERE active AND next_due_at <= $1 ORDER BY next_due_at ASC`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FollowUpRecord
	for rows.Next() {
		var rec domain.FollowUpRecord
		if err := scanFollowUp(rows, &rec); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type followUpScanner interface {
	Scan(dest ...any) error
}

func scanFollowUp(row followUpScanner, rec *domain.FollowUpRecord) error {
	return row.Scan(
		&rec.ID,
		&rec.CaseID,
		&rec.Attempts,
		&rec.LastAttemptAt,
		&rec.NextDueAt,
		&rec.Active,
		&rec.Outcome,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// CaseFilter captures search parameters for operator listings.
type CaseFilter struct {
	ResidentID *string
	Statuses   []domain.CaseStatus
	Priorities []domain.CasePriority
	Limit      int
	Offset     int
}

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Case, error)
	ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
	// ListAwaitingFollowUp returns VISIT_COMPLETED cases whose visit finished
	// at or before the cutoff and that have no active follow-up record yet.
	ListAwaitingFollowUp(ctx context.Context, completedBefore time.Time) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, external_key, resident_id, category, description, status, priority,
               technician_id, awaiting_technician, visit_completed_at, created_at, updated_at, closed_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (external_key, resident_id, category, description, status, priority, technician_id, awaiting_technician)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		c.ExternalKey,
		c.ResidentID,
		c.Category,
		c.Description,
		c.Status,
		c.Priority,
		c.TechnicianID,
		c.AwaitingTechnician,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET status=$1, priority=$2, technician_id=$3, awaiting_technician=$4,
            visit_completed_at=$5, closed_at=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		c.Status,
		c.Priority,
		c.TechnicianID,
		c.AwaitingTechnician,
		c.VisitCompletedAt,
		c.ClosedAt,
		c.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *caseRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE external_key=$1`
	return r.fetchSingle(ctx, query, key)
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	var c domain.Case
	if err := scanCase(r.pool.QueryRow(ctx, query, arg), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	base := `SELECT ` + caseColumns + ` FROM cases`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ResidentID != nil {
		args = append(args, *filter.ResidentID)
		clauses = append(clauses, fmt.Sprintf("resident_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func (r *caseRepository) ListAwaitingFollowUp(ctx context.Context, completedBefore time.Time) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + `
        FROM cases
        WHERE status=$1 AND visit_completed_at <= $2
          AND NOT EXISTS (
              SELECT 1 FROM follow_up_records f WHERE f.case_id = cases.id AND f.active
          )
        ORDER BY visit_completed_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.CaseStatusVisitCompleted, completedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

type caseScanner interface {
	Scan(dest ...any) error
}

func scanCase(row caseScanner, c *domain.Case) error {
	return row.Scan(
		&c.ID,
		&c.ExternalKey,
		&c.ResidentID,
		&c.Category,
		&c.Description,
		&c.Status,
		&c.Priority,
		&c.TechnicianID,
		&c.AwaitingTechnician,
		&c.VisitCompletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ClosedAt,
	)
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	var result []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := scanCase(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

type cohortRepository struct {
	pool *pgxpool.Pool
}

// NewCohortRepository returns a Postgres-backed cohort read repository.
func NewCohortRepository(pool *pgxpool.Pool) repository.CohortRepository {
	return &cohortRepository{pool: pool}
}

func (r *cohortRepository) GetByID(ctx context.Context, id string) (*domain.Cohort, error) {
	const query = `
	SELECT id, program_id, name, start_date, end_date, status, created_at, updated_at
	FROM cohorts
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var cohort domain.Cohort
	if err := row.Scan(
		&cohort.ID,
		&cohort.ProgramID,
		&cohort.Name,
		&cohort.StartDate,
		&cohort.EndDate,
		&cohort.Status,
		&cohort.CreatedAt,
		&cohort.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCohortNotFound
		}
		return nil, err
	}
	return &cohort, nil
}

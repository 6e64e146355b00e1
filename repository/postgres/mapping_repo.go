package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

type mappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository returns a Postgres-backed user-cohort mapping repository.
func NewMappingRepository(pool *pgxpool.Pool) repository.MappingRepository {
	return &mappingRepository{pool: pool}
}

func (r *mappingRepository) Get(ctx context.Context, userID, cohortID string) (*domain.Mapping, error) {
	const query = `
	SELECT user_id, cohort_id, status, created_at, updated_at
	FROM user_cohort_mappings
	WHERE user_id = $1 AND cohort_id = $2
	`
	row := r.pool.QueryRow(ctx, query, userID, cohortID)

	var mapping domain.Mapping
	if err := row.Scan(&mapping.UserID, &mapping.CohortID, &mapping.Status, &mapping.CreatedAt, &mapping.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMappingNotFound
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *mappingRepository) SetStatus(ctx context.Context, userID, cohortID, status string) error {
	const query = `
	UPDATE user_cohort_mappings SET status = $3, updated_at = NOW()
	WHERE user_id = $1 AND cohort_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, userID, cohortID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMappingNotFound
	}
	return nil
}

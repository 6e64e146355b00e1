package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

type actionRepository struct {
	pool *pgxpool.Pool
}

// NewActionRepository returns a Postgres-backed repository for recorded
// learner actions.
func NewActionRepository(pool *pgxpool.Pool) repository.ActionRepository {
	return &actionRepository{pool: pool}
}

func (r *actionRepository) InsertBatch(ctx context.Context, actions []domain.Action) error {
	if len(actions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
	INSERT INTO user_actions (id, user_id, session_id, kind, subject_id, started_at, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
	`
	for _, action := range actions {
		batch.Queue(query, action.ID, action.UserID, action.SessionID, action.Kind, action.SubjectID, action.StartedAt, action.EndedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range actions {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *actionRepository) LatestEndTimes(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
	SELECT ended_at
	FROM user_actions
	WHERE user_id = $1
	ORDER BY ended_at DESC
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a Postgres-backed session repository. Session
// rows are the authoritative record; caches only shadow them.
func NewSessionRepository(pool *pgxpool.Pool) repository.SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" || session.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}

	const query = `
	INSERT INTO sessions (id, user_id, cohort_id, started_at, ended_at)
	VALUES ($1, $2, $3, $4, NULL)
	`
	_, err := r.pool.Exec(ctx, query, session.ID, session.UserID, session.CohortID, session.StartedAt)
	return err
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	const query = `
	SELECT id, user_id, cohort_id, started_at, ended_at
	FROM sessions
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var session domain.Session
	if err := row.Scan(&session.ID, &session.UserID, &session.CohortID, &session.StartedAt, &session.EndedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Close is idempotent: a row whose end timestamp is already set is left
// untouched so concurrent terminations do not clobber each other.
func (r *sessionRepository) Close(ctx context.Context, id string, endedAt time.Time) error {
	const query = `
	UPDATE sessions SET ended_at = $2
	WHERE id = $1 AND ended_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, id, endedAt)
	return err
}

func (r *sessionRepository) FindLiveByUser(ctx context.Context, userID, cohortID string) ([]domain.Session, error) {
	const query = `
	SELECT id, user_id, cohort_id, started_at, ended_at
	FROM sessions
	WHERE user_id = $1
	  AND ended_at IS NULL
	  AND ($2 = '' OR cohort_id = $2)
	ORDER BY started_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.CohortID, &session.StartedAt, &session.EndedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/learnstack/backend/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Close sets the end timestamp on a session row. Closing an already
	// closed session is a no-op, not an error.
	Close(ctx context.Context, id string, endedAt time.Time) error
	// FindLiveByUser returns all sessions for the user with a null end
	// timestamp, optionally scoped to a cohort (empty cohortID means all).
	FindLiveByUser(ctx context.Context, userID, cohortID string) ([]domain.Session, error)
}

type ActionRepository interface {
	InsertBatch(ctx context.Context, actions []domain.Action) error
	// LatestEndTimes returns the most recent action end timestamps for the
	// user, newest first.
	LatestEndTimes(ctx context.Context, userID string, limit int) ([]time.Time, error)
}

// RegistryRepository stores the active session registry: the cache-resident
// mapping from a user to their currently sanctioned session and device.
type RegistryRepository interface {
	Get(ctx context.Context, userID string) (*domain.RegistryEntry, error)
	// Replace overwrites the user's entry unconditionally (last writer wins).
	Replace(ctx context.Context, entry *domain.RegistryEntry) error
	Remove(ctx context.Context, userID string) error
}

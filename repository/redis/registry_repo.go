package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

type registryRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewRegistryRepository creates the Redis-backed active session registry.
// Entries carry a TTL so an abandoned registry row cannot outlive the longest
// possible session.
func NewRegistryRepository(client *redislib.Client, ttl time.Duration) repository.RegistryRepository {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &registryRepository{
		client: client,
		prefix: "registry:user:",
		ttl:    ttl,
	}
}

func (r *registryRepository) Get(ctx context.Context, userID string) (*domain.RegistryEntry, error) {
	result, err := r.client.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	var entry domain.RegistryEntry
	if err := json.Unmarshal([]byte(result), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Replace is a plain SET: last writer wins, which is the convergence rule for
// racing logins.
func (r *registryRepository) Replace(ctx context.Context, entry *domain.RegistryEntry) error {
	if entry == nil || entry.UserID == "" || entry.SessionID == "" {
		return domain.ErrInvalidPayload
	}
	if entry.RegisteredAt.IsZero() {
		entry.RegisteredAt = time.Now()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(entry.UserID), payload, r.ttl).Err()
}

func (r *registryRepository) Remove(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}

func (r *registryRepository) key(userID string) string {
	return fmt.Sprintf("%s%s", r.prefix, userID)
}

// Package snapshot provides read-through cached copies of User, Cohort and
// UserCohortMapping rows. Each type has its own TTL; the relational store is
// always the authoritative truth and is consulted on every cache miss.
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/cache"
	"github.com/learnstack/backend/repository"
)

// TTLs carries the per-type snapshot lifetimes.
type TTLs struct {
	User    time.Duration
	Cohort  time.Duration
	Mapping time.Duration
}

func (t TTLs) withDefaults() TTLs {
	if t.User <= 0 {
		t.User = 60 * time.Minute
	}
	if t.Cohort <= 0 {
		t.Cohort = 120 * time.Minute
	}
	if t.Mapping <= 0 {
		t.Mapping = 60 * time.Minute
	}
	return t
}

// Loader serves entity snapshots from cache, falling back to the repositories.
type Loader struct {
	users    repository.UserRepository
	cohorts  repository.CohortRepository
	mappings repository.MappingRepository
	cache    cache.Store
	ttls     TTLs
	logger   *zap.Logger
}

func NewLoader(
	users repository.UserRepository,
	cohorts repository.CohortRepository,
	mappings repository.MappingRepository,
	cacheStore cache.Store,
	ttls TTLs,
	logger *zap.Logger,
) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		users:    users,
		cohorts:  cohorts,
		mappings: mappings,
		cache:    cacheStore,
		ttls:     ttls.withDefaults(),
		logger:   logger,
	}
}

func (l *Loader) User(ctx context.Context, id string) (*domain.User, error) {
	key := userKey(id)

	var user domain.User
	if l.fromCache(ctx, key, &user) {
		return &user, nil
	}

	fresh, err := l.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.toCache(ctx, key, fresh, l.ttls.User)
	return fresh, nil
}

func (l *Loader) Cohort(ctx context.Context, id string) (*domain.Cohort, error) {
	key := cohortKey(id)

	var cohort domain.Cohort
	if l.fromCache(ctx, key, &cohort) {
		return &cohort, nil
	}

	fresh, err := l.cohorts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.toCache(ctx, key, fresh, l.ttls.Cohort)
	return fresh, nil
}

func (l *Loader) Mapping(ctx context.Context, userID, cohortID string) (*domain.Mapping, error) {
	key := mappingKey(userID, cohortID)

	var mapping domain.Mapping
	if l.fromCache(ctx, key, &mapping) {
		return &mapping, nil
	}

	fresh, err := l.mappings.Get(ctx, userID, cohortID)
	if err != nil {
		return nil, err
	}
	l.toCache(ctx, key, fresh, l.ttls.Mapping)
	return fresh, nil
}

// EvictUser drops the cached user snapshot. Evicting an absent key is a no-op.
func (l *Loader) EvictUser(ctx context.Context, id string) error {
	return l.cache.Delete(ctx, userKey(id))
}

func (l *Loader) EvictCohort(ctx context.Context, id string) error {
	return l.cache.Delete(ctx, cohortKey(id))
}

func (l *Loader) EvictMapping(ctx context.Context, userID, cohortID string) error {
	return l.cache.Delete(ctx, mappingKey(userID, cohortID))
}

// fromCache attempts a cache read. Backend failures and corrupt payloads are
// logged and treated as a miss.
func (l *Loader) fromCache(ctx context.Context, key string, out interface{}) bool {
	payload, found, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("snapshot cache read failed, falling back to store", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		l.logger.Warn("corrupt snapshot payload, refetching", zap.String("key", key), zap.Error(err))
		_ = l.cache.Delete(ctx, key)
		return false
	}
	return true
}

// toCache writes best-effort: a failed write only costs the next request a
// database round trip.
func (l *Loader) toCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, key, payload, ttl); err != nil {
		l.logger.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func userKey(id string) string {
	return "snapshot:user:" + id
}

func cohortKey(id string) string {
	return "snapshot:cohort:" + id
}

func mappingKey(userID, cohortID string) string {
	return "snapshot:mapping:" + userID + ":" + cohortID
}

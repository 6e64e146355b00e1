package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/cache"
)

type countingUsers struct {
	user  *domain.User
	calls int
}

func (c *countingUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	c.calls++
	if c.user == nil || c.user.ID != id {
		return nil, domain.ErrUserNotFound
	}
	copied := *c.user
	return &copied, nil
}

func (c *countingUsers) Create(context.Context, *domain.User) error      { return nil }
func (c *countingUsers) SetStatus(context.Context, string, string) error { return nil }

type countingCohorts struct {
	cohort *domain.Cohort
	calls  int
}

func (c *countingCohorts) GetByID(_ context.Context, id string) (*domain.Cohort, error) {
	c.calls++
	if c.cohort == nil || c.cohort.ID != id {
		return nil, domain.ErrCohortNotFound
	}
	copied := *c.cohort
	return &copied, nil
}

type countingMappings struct {
	mapping *domain.Mapping
	calls   int
}

func (c *countingMappings) Get(_ context.Context, userID, cohortID string) (*domain.Mapping, error) {
	c.calls++
	if c.mapping == nil || c.mapping.UserID != userID || c.mapping.CohortID != cohortID {
		return nil, domain.ErrMappingNotFound
	}
	copied := *c.mapping
	return &copied, nil
}

func (c *countingMappings) SetStatus(context.Context, string, string, string) error { return nil }

// failingStore errors on every read, succeeds on writes and deletes.
type failingStore struct{ inner cache.Store }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend unavailable")
}

func (f failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return f.inner.Set(ctx, key, value, ttl)
}

func (f failingStore) Delete(ctx context.Context, keys ...string) error {
	return f.inner.Delete(ctx, keys...)
}

func newTestLoader() (*Loader, *countingUsers, *countingCohorts, *countingMappings, cache.Store) {
	users := &countingUsers{user: &domain.User{ID: "u1", Status: domain.UserStatusActive}}
	cohorts := &countingCohorts{cohort: &domain.Cohort{ID: "c1", Name: "spring"}}
	mappings := &countingMappings{mapping: &domain.Mapping{UserID: "u1", CohortID: "c1", Status: domain.MappingStatusActive}}
	memory := cache.NewMemoryStore()
	loader := NewLoader(users, cohorts, mappings, memory, TTLs{}, nil)
	return loader, users, cohorts, mappings, memory
}

func TestUserReadThrough(t *testing.T) {
	loader, users, _, _, _ := newTestLoader()
	ctx := context.Background()

	first, err := loader.User(ctx, "u1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	second, err := loader.User(ctx, "u1")
	if err != nil {
		t.Fatalf("cached load failed: %v", err)
	}

	if users.calls != 1 {
		t.Fatalf("expected one store read, got %d", users.calls)
	}
	if first.ID != second.ID || first.Status != second.Status {
		t.Fatalf("cached snapshot differs: %+v vs %+v", first, second)
	}
}

func TestCohortReadThrough(t *testing.T) {
	loader, _, cohorts, _, _ := newTestLoader()
	ctx := context.Background()

	if _, err := loader.Cohort(ctx, "c1"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := loader.Cohort(ctx, "c1"); err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if cohorts.calls != 1 {
		t.Fatalf("expected one store read, got %d", cohorts.calls)
	}
}

func TestMappingReadThrough(t *testing.T) {
	loader, _, _, mappings, _ := newTestLoader()
	ctx := context.Background()

	if _, err := loader.Mapping(ctx, "u1", "c1"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := loader.Mapping(ctx, "u1", "c1"); err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if mappings.calls != 1 {
		t.Fatalf("expected one store read, got %d", mappings.calls)
	}
}

func TestMissingUserNotCached(t *testing.T) {
	loader, users, _, _, _ := newTestLoader()
	ctx := context.Background()

	if _, err := loader.User(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if _, err := loader.User(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if users.calls != 2 {
		t.Fatalf("negative results must not be cached, got %d reads", users.calls)
	}
}

func TestEvictUserForcesRefetch(t *testing.T) {
	loader, users, _, _, _ := newTestLoader()
	ctx := context.Background()

	if _, err := loader.User(ctx, "u1"); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// A standing change lands in the store; eviction makes it visible.
	users.user.Status = domain.UserStatusDeactivated
	if err := loader.EvictUser(ctx, "u1"); err != nil {
		t.Fatalf("evict failed: %v", err)
	}

	fresh, err := loader.User(ctx, "u1")
	if err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if fresh.Status != domain.UserStatusDeactivated {
		t.Fatalf("expected refreshed status, got %q", fresh.Status)
	}
	if users.calls != 2 {
		t.Fatalf("expected a second store read after evict, got %d", users.calls)
	}
}

func TestEvictAbsentKeyIsNoop(t *testing.T) {
	loader, _, _, _, _ := newTestLoader()

	if err := loader.EvictUser(context.Background(), "never-loaded"); err != nil {
		t.Fatalf("evicting an absent key must not fail: %v", err)
	}
	if err := loader.EvictMapping(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("evicting an absent mapping must not fail: %v", err)
	}
}

func TestCacheReadFailureFallsBackToStore(t *testing.T) {
	users := &countingUsers{user: &domain.User{ID: "u1", Status: domain.UserStatusActive}}
	loader := NewLoader(users, &countingCohorts{}, &countingMappings{}, failingStore{inner: cache.NewMemoryStore()}, TTLs{}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		user, err := loader.User(ctx, "u1")
		if err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
		if user.ID != "u1" {
			t.Fatalf("unexpected user: %+v", user)
		}
	}
	if users.calls != 2 {
		t.Fatalf("every read should hit the store while the cache is down, got %d", users.calls)
	}
}

func TestCorruptPayloadRefetches(t *testing.T) {
	loader, users, _, _, memory := newTestLoader()
	ctx := context.Background()

	if err := memory.Set(ctx, "snapshot:user:u1", []byte("{not json"), time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user, err := loader.User(ctx, "u1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if users.calls != 1 {
		t.Fatalf("corrupt payload must fall through to the store, got %d reads", users.calls)
	}
}

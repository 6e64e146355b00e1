package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

func newTestRegistry(t *testing.T) (repository.RegistryRepository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRegistryRepository(client, time.Hour), server
}

func TestRegistryRoundTrip(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	entry := &domain.RegistryEntry{
		UserID:      "u1",
		SessionID:   "s1",
		CohortID:    "c1",
		Fingerprint: "fp1",
	}
	if err := registry.Replace(ctx, entry); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	got, err := registry.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SessionID != "s1" || got.Fingerprint != "fp1" || got.CohortID != "c1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.RegisteredAt.IsZero() {
		t.Fatal("replace must stamp RegisteredAt")
	}
}

func TestRegistryGetMissing(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Get(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestRegistryLastWriterWins(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	first := &domain.RegistryEntry{UserID: "u1", SessionID: "s1", Fingerprint: "fp1"}
	second := &domain.RegistryEntry{UserID: "u1", SessionID: "s2", Fingerprint: "fp2"}
	if err := registry.Replace(ctx, first); err != nil {
		t.Fatalf("first replace failed: %v", err)
	}
	if err := registry.Replace(ctx, second); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}

	got, err := registry.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SessionID != "s2" || got.Fingerprint != "fp2" {
		t.Fatalf("expected the newer entry, got %+v", got)
	}
}

func TestRegistryRejectsIncompleteEntry(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.Replace(ctx, nil); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for nil, got %v", err)
	}
	if err := registry.Replace(ctx, &domain.RegistryEntry{UserID: "u1"}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for missing session, got %v", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	entry := &domain.RegistryEntry{UserID: "u1", SessionID: "s1", Fingerprint: "fp1"}
	if err := registry.Replace(ctx, entry); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if err := registry.Remove(ctx, "u1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := registry.Get(ctx, "u1"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected entry gone, got %v", err)
	}

	// Removing again is a no-op.
	if err := registry.Remove(ctx, "u1"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
}

func TestRegistryEntriesExpire(t *testing.T) {
	registry, server := newTestRegistry(t)
	ctx := context.Background()

	entry := &domain.RegistryEntry{UserID: "u1", SessionID: "s1", Fingerprint: "fp1"}
	if err := registry.Replace(ctx, entry); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	server.FastForward(time.Hour + time.Minute)

	if _, err := registry.Get(ctx, "u1"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected expired entry to be gone, got %v", err)
	}
}

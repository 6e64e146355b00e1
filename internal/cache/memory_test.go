package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, found, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be present")
	}
	if string(value) != "v1" {
		t.Fatalf("expected v1, got %s", value)
	}

	_, found, err = store.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Fatal("expected miss for absent key")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().(*memoryStore)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	now = now.Add(4 * time.Minute)
	if _, found, _ := store.Get(ctx, "k1"); !found {
		t.Fatal("entry expired too early")
	}

	now = now.Add(time.Minute)
	if _, found, _ := store.Get(ctx, "k1"); found {
		t.Fatal("entry served past its TTL")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "k1", []byte("v1"), time.Minute)
	_ = store.Set(ctx, "k2", []byte("v2"), time.Minute)

	if err := store.Delete(ctx, "k1", "k2"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := store.Get(ctx, "k1"); found {
		t.Fatal("k1 survived delete")
	}
	if _, found, _ := store.Get(ctx, "k2"); found {
		t.Fatal("k2 survived delete")
	}

	// Deleting absent keys is a no-op.
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("repeat delete errored: %v", err)
	}
}

func TestMemoryStoreValueIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := []byte("payload")
	_ = store.Set(ctx, "k", original, time.Minute)
	original[0] = 'X'

	value, _, _ := store.Get(ctx, "k")
	if string(value) != "payload" {
		t.Fatalf("stored value was mutated through the caller's slice: %s", value)
	}

	value[0] = 'Y'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != "payload" {
		t.Fatalf("stored value was mutated through a returned slice: %s", again)
	}
}

// Package cache provides the TTL key/value layer shared by the snapshot
// loaders, the activity monitor and the validation engine. Entries are
// immutable once written: callers evict and recompute instead of mutating in
// place.
package cache

import (
	"context"
	"time"
)

// Store is a TTL-bounded key/value store. A backend error is reported as an
// error; callers are expected to degrade it to a cache miss and fall back to
// the authoritative store.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

package shared

import (
	"context"

	"github.com/google/uuid"
)

// SettingsStore is a tenant-scoped key-value store for small operational
// values such as counters and flags. Keys are namespaced by group.
type SettingsStore interface {
	// Get returns the value stored under (group, key), or ErrNotFound
	Get(ctx context.Context, tenantID uuid.UUID, group, key string) (string, error)

	// Set stores value under (group, key), overwriting any existing value
	Set(ctx context.Context, tenantID uuid.UUID, group, key, value string) error

	// Increment atomically increments the integer stored under (group, key)
	// and returns the new value. A missing key counts as zero, so the first
	// increment returns 1. Concurrent increments never return the same value.
	Increment(ctx context.Context, tenantID uuid.UUID, group, key string) (int64, error)
}

// Package cache provides the TTL cache used for popularity aggregates and
// user profile centroids. Invalidation is time-based only; readers tolerate
// slightly stale values.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values under string keys with a TTL.
type Cache interface {
	// Get unmarshals the cached value into dest and reports whether a live
	// entry existed.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

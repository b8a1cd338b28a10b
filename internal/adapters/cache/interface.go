package cache

import (
	"context"
	"time"
)

type hitResult[T any] struct {
	data    T
	valid   bool
	claimed bool
	// Identifies the claim when claimed is true
	claim uint64
}

type cacheEntry[T any] struct {
	data      T
	valid     bool
	claim     uint64
	writtenAt time.Time
}

// Cache is a claim-based store: a miss claims the key so concurrent callers
// wait for the claimer to fill it instead of duplicating work.
//
// A claim dropped by an invalidation is gone for good: the claimer may not
// store its result or release a newer claim on the same key.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	// Stores data if key is still held by claim, reporting whether it did
	setClaimed(key string, claim uint64, data T) bool
	// Deletes key if it is still held by claim
	release(key string, claim uint64)
	wait(ctx context.Context) error
}

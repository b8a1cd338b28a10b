package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/canchas/internal/logging"
)

// GetOrCreate returns the cached value for key, or creates it.
//
// Only results for which cacheable returns true are stored; other results are
// returned to the caller and the claim on the key is released. A result whose
// claim was invalidated while it was being created is returned but not stored.
//
// Returns an error if create fails, or if ctx is done while waiting on
// another caller's claim.
//
// Returns data, created, error
func GetOrCreate[T any](
	ctx context.Context,
	cache Cache[T],
	key string,
	create func() (T, error),
	cacheable func(T) bool,
) (T, bool, error) {
	// Clean up the cache if we claim an entry, but don't set it
	// This allows other callers to try again
	var claim uint64
	claimed := false
	stored := false
	defer func() {
		if claimed && !stored {
			cache.release(key, claim)
		}
	}()

	logger := logging.FromContext(ctx).With(slog.String("key", key))

	for {
		result := cache.getOrClaim(key)

		if result.claimed {
			claimed = true
			claim = result.claim

			logger.InfoContext(ctx, "Cache lookup", "cache", "miss")

			data, err := create()
			if err != nil {
				var empty T
				return empty, false, fmt.Errorf("failed to create cache entry: %w", err)
			}

			if cacheable(data) {
				stored = cache.setClaimed(key, claim, data)
				if !stored {
					logger.InfoContext(ctx, "Cache entry invalidated while creating, not storing")
				}
			}

			return data, true, nil
		}

		if result.valid {
			logger.InfoContext(ctx, "Cache lookup", "cache", "hit")
			return result.data, false, nil
		}

		logger.InfoContext(ctx, "Waiting for cache")
		if err := cache.wait(ctx); err != nil {
			var empty T
			return empty, false, fmt.Errorf("failed waiting for cache entry: %w", err)
		}
	}
}

// Always store the result
func Always[T any](T) bool {
	return true
}

// NonEmpty stores only non-empty lists
func NonEmpty[T any](data []T) bool {
	return len(data) > 0
}

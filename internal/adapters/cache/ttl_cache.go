package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ttlCache expires entries lazily on read using the injected clock.
//
// The underlying ttlcache reaps entries that are never read again.
type ttlCache[T any] struct {
	cache   *ttlcache.Cache[string, cacheEntry[T]]
	ttl     time.Duration
	nowFunc func() time.Time
	lock    sync.Mutex

	lastClaim uint64
}

const waitInterval = 50 * time.Millisecond

func (c *ttlCache[T]) expired(entry cacheEntry[T]) bool {
	return entry.valid && c.nowFunc().Sub(entry.writtenAt) >= c.ttl
}

func (c *ttlCache[T]) getOrClaim(key string) hitResult[T] {
	c.lock.Lock()
	defer c.lock.Unlock()

	if item := c.cache.Get(key); item != nil {
		entry := item.Value()
		if !c.expired(entry) {
			return hitResult[T]{
				data:    entry.data,
				valid:   entry.valid,
				claimed: false,
			}
		}
	}

	c.lastClaim++
	c.cache.Set(key, cacheEntry[T]{valid: false, claim: c.lastClaim, writtenAt: c.nowFunc()}, ttlcache.DefaultTTL)
	return hitResult[T]{
		valid:   false,
		claimed: true,
		claim:   c.lastClaim,
	}
}

// get returns the stored data if present and fresh, deleting it if expired
func (c *ttlCache[T]) get(key string) (T, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var empty T

	item := c.cache.Get(key)
	if item == nil {
		return empty, false
	}

	entry := item.Value()
	if !entry.valid {
		return empty, false
	}
	if c.expired(entry) {
		c.cache.Delete(key)
		return empty, false
	}

	return entry.data, true
}

// set stores data regardless of any claim on key
func (c *ttlCache[T]) set(key string, data T) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cache.Set(key, cacheEntry[T]{data: data, valid: true, writtenAt: c.nowFunc()}, ttlcache.DefaultTTL)
}

// holds reports whether key is an unfilled claim with the given id. Must hold the lock
func (c *ttlCache[T]) holds(key string, claim uint64) bool {
	item := c.cache.Get(key)
	if item == nil {
		return false
	}
	entry := item.Value()
	return !entry.valid && entry.claim == claim
}

func (c *ttlCache[T]) setClaimed(key string, claim uint64, data T) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.holds(key, claim) {
		return false
	}

	c.cache.Set(key, cacheEntry[T]{data: data, valid: true, writtenAt: c.nowFunc()}, ttlcache.DefaultTTL)
	return true
}

func (c *ttlCache[T]) release(key string, claim uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.holds(key, claim) {
		c.cache.Delete(key)
	}
}

func (c *ttlCache[T]) delete(key string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cache.Delete(key)
}

// deleteFunc deletes every entry matching shouldDelete, returning the number deleted.
//
// Pending claims are passed with pending set and the zero value for data.
func (c *ttlCache[T]) deleteFunc(shouldDelete func(key string, data T, pending bool) bool) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	// Items returns a copy, so deleting while iterating is safe
	deleted := 0
	for key, item := range c.cache.Items() {
		entry := item.Value()
		if shouldDelete(key, entry.data, !entry.valid) {
			c.cache.Delete(key)
			deleted++
		}
	}
	return deleted
}

func (c *ttlCache[T]) size() int {
	return c.cache.Len()
}

func (c *ttlCache[T]) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(waitInterval):
		return nil
	}
}

func (c *ttlCache[T]) stop() {
	c.cache.Stop()
}

func newTTLCache[T any](ttl time.Duration, nowFunc func() time.Time) *ttlCache[T] {
	store := ttlcache.New[string, cacheEntry[T]](
		ttlcache.WithTTL[string, cacheEntry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, cacheEntry[T]](),
	)
	go store.Start()
	return &ttlCache[T]{
		cache:   store,
		ttl:     ttl,
		nowFunc: nowFunc,
	}
}

func NewTTLCache[T any](ttl time.Duration, nowFunc func() time.Time) Cache[T] {
	return newTTLCache[T](ttl, nowFunc)
}

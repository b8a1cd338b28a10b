package cache

import (
	"context"
	"runtime"
	"sync"
)

// mockCacheServer steps a fixed number of clients through shared ticks, so
// tests can interleave concurrent GetOrCreate calls deterministically.
type mockCacheServer[T any] struct {
	entries           map[string]cacheEntry[T]
	entriesLock       sync.Mutex
	tickLock          sync.Mutex
	currentTick       int
	maxTicks          int
	numClients        int
	completedThisTick int
	lastClaim         uint64
}

type mockCacheClient[T any] struct {
	server      *mockCacheServer[T]
	desiredTick int
}

func (client *mockCacheClient[T]) getOrClaim(key string) hitResult[T] {
	client.server.entriesLock.Lock()
	defer client.server.entriesLock.Unlock()

	existing, ok := client.server.entries[key]
	if ok {
		return hitResult[T]{
			data:    existing.data,
			valid:   existing.valid,
			claimed: false,
		}
	}

	client.server.lastClaim++
	client.server.entries[key] = cacheEntry[T]{valid: false, claim: client.server.lastClaim}
	return hitResult[T]{
		valid:   false,
		claimed: true,
		claim:   client.server.lastClaim,
	}
}

// Must hold entriesLock
func (client *mockCacheClient[T]) holds(key string, claim uint64) bool {
	existing, ok := client.server.entries[key]
	return ok && !existing.valid && existing.claim == claim
}

func (client *mockCacheClient[T]) setClaimed(key string, claim uint64, data T) bool {
	client.server.entriesLock.Lock()
	defer client.server.entriesLock.Unlock()

	if !client.holds(key, claim) {
		return false
	}
	client.server.entries[key] = cacheEntry[T]{data: data, valid: true}
	return true
}

func (client *mockCacheClient[T]) release(key string, claim uint64) {
	client.server.entriesLock.Lock()
	defer client.server.entriesLock.Unlock()

	if client.holds(key, claim) {
		delete(client.server.entries, key)
	}
}

// invalidate drops key like an invalidation would, claimed or not
func (client *mockCacheClient[T]) invalidate(key string) {
	client.server.entriesLock.Lock()
	defer client.server.entriesLock.Unlock()

	delete(client.server.entries, key)
}

func (client *mockCacheClient[T]) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client.step()
	return nil
}

func (client *mockCacheClient[T]) step() {
	if client.server.isDone() {
		panic("step() called on a client that is already done")
	}

	client.server.tickLock.Lock()
	client.server.completedThisTick++
	client.server.tickLock.Unlock()

	client.desiredTick++

	for client.server.tick() < client.desiredTick {
		runtime.Gosched()
	}
}

func (client *mockCacheClient[T]) waitUntilDone() {
	for !client.server.isDone() {
		client.step()
	}
}

func (server *mockCacheServer[T]) tick() int {
	server.tickLock.Lock()
	defer server.tickLock.Unlock()
	return server.currentTick
}

func (server *mockCacheServer[T]) isDone() bool {
	return server.tick() >= server.maxTicks
}

func (server *mockCacheServer[T]) processTicks() {
	for !server.isDone() {
		server.tickLock.Lock()
		if server.completedThisTick != server.numClients {
			server.tickLock.Unlock()
			runtime.Gosched()
			continue
		}

		server.completedThisTick = 0
		server.currentTick++
		server.tickLock.Unlock()
	}
}

func newMockCacheServer[T any](numClients int, maxTicks int) (*mockCacheServer[T], []*mockCacheClient[T]) {
	server := &mockCacheServer[T]{
		entries:    make(map[string]cacheEntry[T]),
		maxTicks:   maxTicks,
		numClients: numClients,
	}

	clients := make([]*mockCacheClient[T], numClients)
	for i := range numClients {
		clients[i] = &mockCacheClient[T]{server: server}
	}

	return server, clients
}

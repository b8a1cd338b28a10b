package ratelimiting

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const DefaultUpstreamRequestsPerMinute = 60

// Longest time a caller waits in the queue for a token
const MaxAcquireWait = 5 * time.Second

var ErrAcquireTimeout = errors.New("rate limit request timeout")

type tokenBucketMetricsCollection struct {
	acquireCount metric.Int64Counter
}

func setupTokenBucketMetrics(meter metric.Meter) tokenBucketMetricsCollection {
	acquireCount, err := meter.Int64Counter(
		"ratelimiting/token_bucket_acquire_count",
		metric.WithDescription("Token acquisitions by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create token bucket acquire count metric: %w", err))
	}

	return tokenBucketMetricsCollection{
		acquireCount: acquireCount,
	}
}

type waiter struct {
	ready   chan struct{}
	granted bool
}

// TokenBucket limits outbound calls to capacity per minute.
//
// Callers that find the bucket empty queue up and are served in arrival order as
// tokens refill. The bucket starts full.
type TokenBucket struct {
	capacity       int
	refillInterval time.Duration
	nowFunc        func() time.Time
	afterFunc      func(time.Duration) <-chan time.Time

	mutex      sync.Mutex
	tokens     int
	lastRefill time.Time
	queue      []*waiter

	metrics tokenBucketMetricsCollection
}

func NewTokenBucket(
	capacity int,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *TokenBucket {
	if capacity <= 0 {
		panic(fmt.Sprintf("token bucket capacity must be positive, got %d", capacity))
	}

	return &TokenBucket{
		capacity:       capacity,
		refillInterval: time.Minute / time.Duration(capacity),
		nowFunc:        nowFunc,
		afterFunc:      afterFunc,

		tokens:     capacity,
		lastRefill: nowFunc(),
		queue:      []*waiter{},

		metrics: setupTokenBucketMetrics(otel.Meter("canchas/ratelimiting")),
	}
}

// Acquire takes one token, waiting in line for up to MaxAcquireWait if none is available
func (b *TokenBucket) Acquire(ctx context.Context) error {
	b.mutex.Lock()
	b.refill()
	b.drainQueue()

	if b.tokens > 0 {
		b.tokens--
		b.mutex.Unlock()
		b.recordAcquire(ctx, "immediate")
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	b.queue = append(b.queue, w)
	wait := b.untilNextToken()
	b.mutex.Unlock()

	timeout := b.afterFunc(MaxAcquireWait)
	for {
		select {
		case <-w.ready:
			b.recordAcquire(ctx, "queued")
			return nil
		default:
		}

		select {
		case <-w.ready:
			b.recordAcquire(ctx, "queued")
			return nil
		case <-timeout:
			return b.leaveQueue(ctx, w, ErrAcquireTimeout)
		case <-ctx.Done():
			return b.leaveQueue(ctx, w, ctx.Err())
		case <-b.afterFunc(wait):
			// A token is due: refill and serve the head of the queue
			b.mutex.Lock()
			b.refill()
			b.drainQueue()
			wait = b.untilNextToken()
			b.mutex.Unlock()
		}
	}
}

// Tokens returns the number of tokens left as of the last refill
func (b *TokenBucket) Tokens() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.tokens
}

func (b *TokenBucket) QueueLength() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.queue)
}

// Must hold the mutex
func (b *TokenBucket) refill() {
	now := b.nowFunc()
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillInterval {
		return
	}

	added := int(elapsed / b.refillInterval)
	if b.tokens+added >= b.capacity {
		b.tokens = b.capacity
		b.lastRefill = now
		return
	}

	b.tokens += added
	// Keep the remainder so partial intervals count towards the next token
	b.lastRefill = b.lastRefill.Add(time.Duration(added) * b.refillInterval)
}

// Must hold the mutex
func (b *TokenBucket) drainQueue() {
	for b.tokens > 0 && len(b.queue) > 0 {
		w := b.queue[0]
		b.queue = b.queue[1:]
		b.tokens--
		w.granted = true
		close(w.ready)
	}
}

// Must hold the mutex
func (b *TokenBucket) untilNextToken() time.Duration {
	wait := b.lastRefill.Add(b.refillInterval).Sub(b.nowFunc())
	if wait <= 0 {
		return time.Millisecond
	}
	return wait
}

func (b *TokenBucket) leaveQueue(ctx context.Context, w *waiter, cause error) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if w.granted {
		// Served while giving up, keep the token
		b.recordAcquire(ctx, "queued")
		return nil
	}

	b.queue = slices.DeleteFunc(b.queue, func(queued *waiter) bool {
		return queued == w
	})

	if errors.Is(cause, ErrAcquireTimeout) {
		b.recordAcquire(ctx, "timeout")
	} else {
		b.recordAcquire(ctx, "canceled")
	}
	return cause
}

func (b *TokenBucket) recordAcquire(ctx context.Context, outcome string) {
	b.metrics.acquireCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

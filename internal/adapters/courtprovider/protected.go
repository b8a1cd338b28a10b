package courtprovider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/canchas/internal/adapters/cache"
	"github.com/Amund211/canchas/internal/circuitbreaker"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/ratelimiting"
)

const (
	OutcomeHit    = "hit"
	OutcomeStored = "stored"
	// Nothing to store: the upstream had no data, or the call failed or was skipped
	OutcomeEmpty = "empty"
)

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, operation string, outcome string) error
}

// Outcomes waiting to be recorded. Beyond this, outcomes are dropped.
const outcomeQueueSize = 1024

type pendingOutcome struct {
	ctx       context.Context
	operation string
	outcome   string
}

type protectedMetricsCollection struct {
	callCount      metric.Int64Counter
	droppedOutcome metric.Int64Counter
}

func setupProtectedMetrics(meter metric.Meter) protectedMetricsCollection {
	callCount, err := meter.Int64Counter(
		"courtprovider/protected_call_count",
		metric.WithDescription("Protected upstream calls by operation and outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create protected call count metric: %w", err))
	}

	droppedOutcome, err := meter.Int64Counter(
		"courtprovider/dropped_outcome_count",
		metric.WithDescription("Outcomes not recorded because the recording queue was full"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create dropped outcome count metric: %w", err))
	}

	return protectedMetricsCollection{
		callCount:      callCount,
		droppedOutcome: droppedOutcome,
	}
}

// Protected serves upstream data from the cache, calling the provider through
// the rate limiter and circuit breaker on a miss.
//
// Failed calls are answered with an empty list and never return an error.
// Empty lists are not cached.
//
// Outcomes are handed to the recorder in the background. Close stops the
// recording and waits for queued outcomes.
type Protected struct {
	provider CourtProvider
	cache    *cache.AvailabilityCache
	limiter  *ratelimiting.TokenBucket
	breaker  *circuitbreaker.CircuitBreaker
	recorder OutcomeRecorder

	outcomes     chan pendingOutcome
	outcomesLock sync.RWMutex
	closed       bool
	recorderDone chan struct{}

	tracer  trace.Tracer
	metrics protectedMetricsCollection
}

func NewProtected(
	provider CourtProvider,
	availabilityCache *cache.AvailabilityCache,
	limiter *ratelimiting.TokenBucket,
	breaker *circuitbreaker.CircuitBreaker,
	recorder OutcomeRecorder,
) *Protected {
	p := &Protected{
		provider: provider,
		cache:    availabilityCache,
		limiter:  limiter,
		breaker:  breaker,
		recorder: recorder,

		outcomes:     make(chan pendingOutcome, outcomeQueueSize),
		recorderDone: make(chan struct{}),

		tracer:  otel.Tracer("canchas/courtprovider/protected"),
		metrics: setupProtectedMetrics(otel.Meter("canchas/courtprovider")),
	}
	go p.recordOutcomes()
	return p
}

// Close records the queued outcomes and stops the background recorder
func (p *Protected) Close() {
	p.outcomesLock.Lock()
	if !p.closed {
		p.closed = true
		close(p.outcomes)
	}
	p.outcomesLock.Unlock()

	<-p.recorderDone
}

func (p *Protected) GetClubs(ctx context.Context, placeID string) ([]domain.Club, error) {
	ctx, span := p.tracer.Start(ctx, "Protected.GetClubs")
	defer span.End()

	ctx = logging.AddMetaToContext(ctx, slog.String("placeID", placeID))

	return getProtected(ctx, p, "getClubs", p.cache.Clubs(), cache.ClubsKey(placeID),
		func(ctx context.Context) ([]domain.Club, error) {
			return p.provider.GetClubs(ctx, placeID)
		},
	), nil
}

func (p *Protected) GetCourts(ctx context.Context, clubID int) ([]domain.Court, error) {
	ctx, span := p.tracer.Start(ctx, "Protected.GetCourts")
	defer span.End()

	ctx = logging.AddCourtToContext(ctx, clubID, 0)

	return getProtected(ctx, p, "getCourts", p.cache.Courts(), cache.CourtsKey(clubID),
		func(ctx context.Context) ([]domain.Court, error) {
			return p.provider.GetCourts(ctx, clubID)
		},
	), nil
}

func (p *Protected) GetAvailableSlots(ctx context.Context, clubID, courtID int, date time.Time) ([]domain.Slot, error) {
	ctx, span := p.tracer.Start(ctx, "Protected.GetAvailableSlots")
	defer span.End()

	ctx = logging.AddCourtToContext(ctx, clubID, courtID)

	return getProtected(ctx, p, "getAvailableSlots", p.cache.Slots(), cache.SlotsKey(clubID, courtID, date),
		func(ctx context.Context) ([]domain.Slot, error) {
			return p.provider.GetAvailableSlots(ctx, clubID, courtID, date)
		},
	), nil
}

func getProtected[T any](
	ctx context.Context,
	p *Protected,
	operation string,
	store cache.Cache[[]T],
	key string,
	fetch func(ctx context.Context) ([]T, error),
) []T {
	data, created, err := cache.GetOrCreate(ctx, store, key, func() ([]T, error) {
		return circuitbreaker.ExecuteWithFallback(ctx, p.breaker, func(ctx context.Context) ([]T, error) {
			// A token wait timing out counts against the breaker. The caller giving up does not.
			if err := p.limiter.Acquire(ctx); err != nil {
				return nil, fmt.Errorf("failed to acquire upstream token: %w", err)
			}
			return fetch(ctx)
		}, []T{}), nil
	}, cache.NonEmpty)
	if err != nil {
		// Creation never fails, so the caller gave up waiting on a concurrent lookup
		logging.FromContext(ctx).WarnContext(ctx, "Failed to get or create cache entry", "error", err.Error())
		data = nil
	}

	if data == nil {
		data = []T{}
	}

	outcome := OutcomeHit
	if created {
		outcome = OutcomeStored
		if len(data) == 0 {
			outcome = OutcomeEmpty
		}
	}
	p.recordOutcome(ctx, operation, outcome)

	return data
}

func (p *Protected) recordOutcome(ctx context.Context, operation, outcome string) {
	p.metrics.callCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))

	p.outcomesLock.RLock()
	defer p.outcomesLock.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.outcomes <- pendingOutcome{ctx: context.WithoutCancel(ctx), operation: operation, outcome: outcome}:
	default:
		p.metrics.droppedOutcome.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}
}

func (p *Protected) recordOutcomes() {
	defer close(p.recorderDone)

	for pending := range p.outcomes {
		ctx := pending.ctx
		if err := p.recorder.RecordOutcome(ctx, pending.operation, pending.outcome); err != nil {
			logging.FromContext(ctx).WarnContext(
				ctx, "Failed to record upstream outcome",
				slog.String("operation", pending.operation),
				slog.String("error", err.Error()),
			)
		}
	}
}

var _ CourtProvider = (*Protected)(nil)

// Package circuitbreaker stops calling a failing dependency for a while after
// repeated failures, then lets a single trial call test for recovery.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Amund211/canchas/internal/logging"
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is OPEN")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	Name string
	// Consecutive failures that open the circuit
	FailureThreshold int
	// Time since the last failure before a trial call is let through
	ResetTimeout  time.Duration
	NowFunc       func() time.Time
	OnStateChange func(name string, from, to State)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: DefaultFailureThreshold,
		ResetTimeout:     DefaultResetTimeout,
		NowFunc:          time.Now,
	}
}

type circuitBreakerMetricsCollection struct {
	stateChangeCount metric.Int64Counter
	rejectedCount    metric.Int64Counter
}

func setupCircuitBreakerMetrics(meter metric.Meter) circuitBreakerMetricsCollection {
	stateChangeCount, err := meter.Int64Counter(
		"circuitbreaker/state_change_count",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create state change count metric: %w", err))
	}

	rejectedCount, err := meter.Int64Counter(
		"circuitbreaker/rejected_count",
		metric.WithDescription("Calls skipped because the circuit was open"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rejected count metric: %w", err))
	}

	return circuitBreakerMetricsCollection{
		stateChangeCount: stateChangeCount,
		rejectedCount:    rejectedCount,
	}
}

type CircuitBreaker struct {
	config Config

	mutex         sync.Mutex
	state         State
	failures      int
	lastFailureAt time.Time
	trialInFlight bool

	metrics circuitBreakerMetricsCollection
}

func New(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	if config.NowFunc == nil {
		config.NowFunc = time.Now
	}

	return &CircuitBreaker{
		config:  config,
		state:   StateClosed,
		metrics: setupCircuitBreakerMetrics(otel.Meter("canchas/circuitbreaker")),
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.state
}

func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.failures
}

// Execute runs operation unless the circuit is open, recording the outcome.
//
// Returns ErrCircuitOpen without calling operation when the circuit is open.
// A failure caused by ctx ending is the caller giving up, not the dependency
// failing, and is not recorded.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, operation func(ctx context.Context) (T, error)) (T, error) {
	allowed, trial := cb.allow(ctx)
	if !allowed {
		cb.metrics.rejectedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("name", cb.config.Name)))
		var empty T
		return empty, ErrCircuitOpen
	}

	result, err := operation(ctx)
	if callerGaveUp(ctx, err) {
		cb.abandon(trial)
		var empty T
		return empty, err
	}
	cb.record(ctx, err, trial)
	if err != nil {
		var empty T
		return empty, err
	}

	return result, nil
}

// ExecuteWithFallback is Execute, returning fallback instead of an error
func ExecuteWithFallback[T any](ctx context.Context, cb *CircuitBreaker, operation func(ctx context.Context) (T, error), fallback T) T {
	result, err := Execute(ctx, cb, operation)
	if err != nil {
		logging.FromContext(ctx).WarnContext(
			ctx, "Using fallback",
			slog.String("circuitBreaker", cb.config.Name),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	return result
}

// Returns whether the call may proceed, and whether it is the half-open trial call
func (cb *CircuitBreaker) allow(ctx context.Context) (bool, bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if cb.config.NowFunc().Sub(cb.lastFailureAt) <= cb.config.ResetTimeout {
			return false, false
		}
		cb.setState(ctx, StateHalfOpen)
		cb.trialInFlight = true
		return true, true
	case StateHalfOpen:
		// Only one trial call at a time
		if cb.trialInFlight {
			return false, false
		}
		cb.trialInFlight = true
		return true, true
	default:
		panic(fmt.Sprintf("unknown circuit breaker state: %d", cb.state))
	}
}

func callerGaveUp(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// abandon frees the trial slot of a call whose outcome says nothing about the dependency
func (cb *CircuitBreaker) abandon(trial bool) {
	if !trial {
		return
	}
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.trialInFlight = false
}

func (cb *CircuitBreaker) record(ctx context.Context, err error, trial bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if trial {
		cb.trialInFlight = false
	}

	if err == nil {
		cb.failures = 0
		if trial {
			cb.setState(ctx, StateClosed)
		}
		return
	}

	cb.failures++
	cb.lastFailureAt = cb.config.NowFunc()

	if trial || (cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold) {
		cb.setState(ctx, StateOpen)
	}
}

// Must hold the mutex
func (cb *CircuitBreaker) setState(ctx context.Context, to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	logging.FromContext(ctx).InfoContext(
		ctx, "Circuit breaker state changed",
		slog.String("circuitBreaker", cb.config.Name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failures", cb.failures),
	)
	cb.metrics.stateChangeCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", cb.config.Name),
		attribute.String("to", to.String()),
	))

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

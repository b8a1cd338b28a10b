// Package statsstore keeps running counts of upstream call outcomes.
package statsstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Amund211/canchas/internal/config"
)

const DefaultPrefix = "canchas:upstream"

type Redis struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	nowFunc func() time.Time
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(s *Redis) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// WithBucketTTL sets how long per-minute buckets are kept. Totals never expire.
func WithBucketTTL(ttl time.Duration) RedisOption {
	return func(s *Redis) {
		s.ttl = ttl
	}
}

func NewRedis(rdb *redis.Client, nowFunc func() time.Time, opts ...RedisOption) *Redis {
	s := &Redis{
		rdb:     rdb,
		prefix:  DefaultPrefix,
		ttl:     24 * time.Hour,
		timeout: 250 * time.Millisecond,
		nowFunc: nowFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) totalKey() string {
	return s.prefix + ":total"
}

func (s *Redis) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func field(operation, outcome string) string {
	return operation + ":" + outcome
}

func (s *Redis) RecordOutcome(ctx context.Context, operation string, outcome string) error {
	// Stats are recorded even if the request that caused them is canceled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	bucketKey := s.minuteKey(s.nowFunc())

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field(operation, outcome), 1)
	pipe.HIncrBy(ctx, bucketKey, field(operation, outcome), 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// Totals returns the all-time count per "operation:outcome"
func (s *Redis) Totals(ctx context.Context) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get totals: %w", err)
	}
	return parseCounts(raw)
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}

type Noop struct{}

func (Noop) RecordOutcome(ctx context.Context, operation string, outcome string) error {
	return nil
}

func (Noop) Totals(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (Noop) Close() error {
	return nil
}

type Store interface {
	RecordOutcome(ctx context.Context, operation string, outcome string) error
	Totals(ctx context.Context) (map[string]int64, error)
	Close() error
}

func NewRedisOrNoop(conf config.Config, nowFunc func() time.Time) (Store, error) {
	if conf.RedisURL() == "" {
		return Noop{}, nil
	}

	options, err := redis.ParseURL(conf.RedisURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return NewRedis(redis.NewClient(options), nowFunc), nil
}

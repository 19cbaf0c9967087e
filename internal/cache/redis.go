package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/observability"
)

const (
	defaultKeyPrefix   = "avafields:"
	redisPingTimeout   = 5 * time.Second
	breakerName        = "redis-cache"
	defaultHalfOpenReq = 1
)

// redisCache implements Cache on Redis. Calls go through an optional circuit
// breaker; while it is open they fail fast with ErrUnavailable.
type redisCache struct {
	logger     observability.Logger
	client     *redis.Client
	breaker    *gobreaker.CircuitBreaker
	keyPrefix  string
	defaultTTL time.Duration
	ttlJitter  float64

	hits   atomic.Int64
	misses atomic.Int64
}

func newRedisCache(cfg *config.CacheConfig, logger observability.Logger) (*redisCache, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis URL is required", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis URL: %w", ErrInvalidConfig, err)
	}
	applyRedisPoolOptions(opts, cfg.Redis)

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	c := &redisCache{
		logger:     logger,
		client:     client,
		keyPrefix:  resolveKeyPrefix(cfg.Redis.KeyPrefix),
		defaultTTL: cfg.TTL.Duration(),
		ttlJitter:  cfg.Redis.TTLJitter,
	}
	if cb := cfg.Redis.CircuitBreaker; cb != nil && cb.Enabled {
		c.breaker = newBreaker(cb, logger)
	}

	logger.Info("redis cache initialized",
		observability.String("addr", opts.Addr),
		observability.String("keyPrefix", c.keyPrefix),
		observability.Duration("defaultTTL", c.defaultTTL),
		observability.Float64("ttlJitter", c.ttlJitter),
		observability.Bool("circuitBreaker", c.breaker != nil))

	return c, nil
}

func newBreaker(cfg *config.CircuitBreakerConfig, logger observability.Logger) *gobreaker.CircuitBreaker {
	threshold := safeIntToUint32(cfg.Threshold)
	halfOpen := safeIntToUint32(cfg.HalfOpenRequests)
	if halfOpen == 0 {
		halfOpen = defaultHalfOpenReq
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: halfOpen,
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A miss is an answer, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()))
			GetCacheMetrics().breakerState.WithLabelValues(backendRedis).Set(float64(to))
		},
	})
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// applyRedisPoolOptions applies pool and timeout configuration overrides to Redis options.
func applyRedisPoolOptions(opts *redis.Options, redisCfg *config.RedisCacheConfig) {
	if redisCfg.PoolSize > 0 {
		opts.PoolSize = redisCfg.PoolSize
	}
	if redisCfg.ConnectTimeout > 0 {
		opts.DialTimeout = redisCfg.ConnectTimeout.Duration()
	}
	if redisCfg.ReadTimeout > 0 {
		opts.ReadTimeout = redisCfg.ReadTimeout.Duration()
	}
	if redisCfg.WriteTimeout > 0 {
		opts.WriteTimeout = redisCfg.WriteTimeout.Duration()
	}
}

func resolveKeyPrefix(prefix string) string {
	if prefix == "" {
		return defaultKeyPrefix
	}
	return prefix
}

// applyTTLJitter varies ttl by up to ±jitterFactor so entries written
// together do not expire together.
func applyTTLJitter(ttl time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 || ttl <= 0 {
		return ttl
	}
	if jitterFactor > 1.0 {
		jitterFactor = 1.0
	}
	//nolint:gosec // G404: TTL jitter does not require cryptographic randomness
	jitter := time.Duration(float64(ttl) * jitterFactor * (2*rand.Float64() - 1))
	if result := ttl + jitter; result > 0 {
		return result
	}
	return ttl
}

// do runs fn through the breaker when one is configured.
func (c *redisCache) do(fn func() (interface{}, error)) (interface{}, error) {
	if c.breaker == nil {
		return fn()
	}
	v, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, err
}

func (c *redisCache) fail(span trace.Span, op, key string, err error) {
	GetCacheMetrics().errorsTotal.WithLabelValues(backendRedis, op).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, ErrUnavailable) {
		c.logger.Debug("redis "+op+" skipped",
			observability.String("key", key),
			observability.Error(err))
		return
	}
	c.logger.Error("redis "+op+" failed",
		observability.String("key", key),
		observability.Error(err))
}

// Get retrieves a value from the cache.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span, done := startOp(ctx, backendRedis, "get", key, trace.SpanKindClient)
	defer done()

	v, err := c.do(func() (interface{}, error) {
		return c.client.Get(ctx, c.keyPrefix+key).Bytes()
	})
	switch {
	case err == nil:
		value := v.([]byte)
		c.hits.Add(1)
		GetCacheMetrics().hitsTotal.WithLabelValues(backendRedis).Inc()
		span.SetAttributes(
			attribute.Bool("cache.hit", true),
			attribute.Int("cache.value_size", len(value)),
		)
		return value, nil
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		GetCacheMetrics().missesTotal.WithLabelValues(backendRedis).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	default:
		c.fail(span, "get", key, err)
		return nil, err
	}
}

// Set stores a value in the cache. A negative ttl stores without expiry.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span, done := startOp(ctx, backendRedis, "set", key, trace.SpanKindClient)
	defer done()
	span.SetAttributes(attribute.Int("cache.value_size", len(value)))

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	ttl = applyTTLJitter(ttl, c.ttlJitter)
	if ttl < 0 {
		ttl = 0
	}

	_, err := c.do(func() (interface{}, error) {
		return nil, c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
	})
	if err != nil {
		c.fail(span, "set", key, err)
		return err
	}
	return nil
}

// Delete removes a value from the cache.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	ctx, span, done := startOp(ctx, backendRedis, "delete", key, trace.SpanKindClient)
	defer done()

	_, err := c.do(func() (interface{}, error) {
		return nil, c.client.Del(ctx, c.keyPrefix+key).Err()
	})
	if err != nil {
		c.fail(span, "delete", key, err)
		return err
	}
	return nil
}

// Exists checks if a key exists in the cache.
func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span, done := startOp(ctx, backendRedis, "exists", key, trace.SpanKindClient)
	defer done()

	v, err := c.do(func() (interface{}, error) {
		return c.client.Exists(ctx, c.keyPrefix+key).Result()
	})
	if err != nil {
		c.fail(span, "exists", key, err)
		return false, err
	}

	exists := v.(int64) > 0
	span.SetAttributes(attribute.Bool("cache.exists", exists))
	return exists, nil
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	c.logger.Info("redis cache closing")
	return c.client.Close()
}

// Stats returns cache statistics.
func (c *redisCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// BreakerState returns the circuit breaker state, or closed without one.
func (c *redisCache) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

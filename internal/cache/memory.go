package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/observability"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "avafields/cache"

const (
	defaultMaxEntries = 10000
	cleanupInterval   = time.Minute
)

// memoryCache is an in-process LRU cache with per-entry expiry.
type memoryCache struct {
	logger     observability.Logger
	maxEntries int
	defaultTTL time.Duration

	mu      sync.Mutex
	items   map[string]*list.Element
	recency *list.List

	hits   atomic.Int64
	misses atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func newMemoryCache(cfg *config.CacheConfig, logger observability.Logger) *memoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	c := &memoryCache{
		logger:     logger,
		maxEntries: maxEntries,
		defaultTTL: cfg.TTL.Duration(),
		items:      make(map[string]*list.Element),
		recency:    list.New(),
		stopCh:     make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c
}

// startOp opens the span for op and returns a func that ends it and records
// the operation duration.
func startOp(ctx context.Context, backend, op, key string, kind trace.SpanKind) (context.Context, trace.Span, func()) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("cache.backend", backend),
			attribute.String("cache.key", key),
		),
	)
	start := time.Now()
	return ctx, span, func() {
		GetCacheMetrics().operationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span, done := startOp(ctx, backendMemory, "get", key, trace.SpanKindInternal)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok && elem.Value.(*memoryEntry).expired(time.Now()) {
		c.remove(elem)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		GetCacheMetrics().missesTotal.WithLabelValues(backendMemory).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}

	c.recency.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)

	c.hits.Add(1)
	GetCacheMetrics().hitsTotal.WithLabelValues(backendMemory).Inc()
	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(entry.value)),
	)

	return entry.value, nil
}

// Set stores a value, evicting the least recently used entries past capacity.
func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span, done := startOp(ctx, backendMemory, "set", key, trace.SpanKindInternal)
	defer done()
	span.SetAttributes(attribute.Int("cache.value_size", len(value)))

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	entry := &memoryEntry{key: key, value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = entry
		c.recency.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.recency.PushFront(entry)
	for c.recency.Len() > c.maxEntries {
		c.remove(c.recency.Back())
		GetCacheMetrics().evictionsTotal.WithLabelValues(backendMemory).Inc()
	}

	GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.recency.Len()))

	c.logger.Debug("cache set",
		observability.String("key", key),
		observability.Duration("ttl", ttl),
		observability.Int("size", c.recency.Len()))

	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	_, _, done := startOp(ctx, backendMemory, "delete", key, trace.SpanKindInternal)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// Exists checks if an unexpired entry exists for key. It does not affect
// recency.
func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, span, done := startOp(ctx, backendMemory, "exists", key, trace.SpanKindInternal)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok && elem.Value.(*memoryEntry).expired(time.Now()) {
		c.remove(elem)
		ok = false
	}

	span.SetAttributes(attribute.Bool("cache.exists", ok))
	return ok, nil
}

// Close stops the cleanup goroutine and drops every entry. It is safe to
// call more than once.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)

		c.mu.Lock()
		c.items = make(map[string]*list.Element)
		c.recency.Init()
		c.mu.Unlock()

		GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(0)
		c.logger.Info("memory cache closed")
	})
	return nil
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	size := int64(c.recency.Len())
	c.mu.Unlock()

	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

// remove must be called with mu held.
func (c *memoryCache) remove(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.items, elem.Value.(*memoryEntry).key)
}

func (c *memoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes expired entries.
func (c *memoryCache) cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.recency.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}

	if removed > 0 {
		GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(c.recency.Len()))
		c.logger.Debug("cache cleanup completed",
			observability.Int("removed", removed))
	}
	return removed
}

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/observability"
)

const fieldsKeyPrefix = "fields"

// wireFields is the cached encoding of a fields.Fields node. Only reachable
// state is kept: children and transformations of unselected names are
// dropped.
type wireFields struct {
	IncludesAll     bool                               `cbor:"1,keyasint,omitempty"`
	Names           []string                           `cbor:"2,keyasint,omitempty"`
	Children        map[string]*wireFields             `cbor:"3,keyasint,omitempty"`
	Transformations map[string][]fields.Transformation `cbor:"4,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{MaxNestedLevels: 256}).DecMode(); err != nil {
		panic(err)
	}
}

// EncodeFields serializes f. Equal trees encode to identical bytes.
func EncodeFields(f *fields.Fields) ([]byte, error) {
	if f == nil {
		return nil, errors.New("nil fields")
	}
	return encMode.Marshal(toWire(f))
}

// DecodeFields rebuilds a tree serialized by EncodeFields.
func DecodeFields(data []byte) (*fields.Fields, error) {
	var w wireFields
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fromWire(&w), nil
}

func toWire(f *fields.Fields) *wireFields {
	w := &wireFields{
		IncludesAll: f.IncludesAll(),
		Names:       f.Names(),
	}

	for _, name := range f.ChildNames() {
		if !f.Test(name) {
			continue
		}
		if w.Children == nil {
			w.Children = make(map[string]*wireFields)
		}
		w.Children[name] = toWire(f.Children(name))
	}

	for _, name := range f.TransformedNames() {
		list := f.Transformations(name)
		if len(list) == 0 {
			continue
		}
		if w.Transformations == nil {
			w.Transformations = make(map[string][]fields.Transformation)
		}
		w.Transformations[name] = list
	}

	return w
}

func fromWire(w *wireFields) *fields.Fields {
	var children map[string]*fields.Fields
	if len(w.Children) > 0 {
		children = make(map[string]*fields.Fields, len(w.Children))
		for name, c := range w.Children {
			if c != nil {
				children[name] = fromWire(c)
			}
		}
	}
	return fields.NewFields(w.IncludesAll, w.Names, children, w.Transformations)
}

// FieldsCache caches parsed fields expressions per schema. Backend failures
// are logged and treated as misses; they never fail a parse.
type FieldsCache struct {
	backend    Cache
	ttl        time.Duration
	generation string
	logger     observability.Logger
}

// FieldsCacheOption configures a FieldsCache.
type FieldsCacheOption func(*FieldsCache)

// WithTTL sets the TTL of cached trees. Zero uses the backend default.
func WithTTL(ttl time.Duration) FieldsCacheOption {
	return func(c *FieldsCache) {
		c.ttl = ttl
	}
}

// WithGeneration namespaces keys so trees parsed against older schemas or
// presets are never returned.
func WithGeneration(generation string) FieldsCacheOption {
	return func(c *FieldsCache) {
		c.generation = generation
	}
}

// WithFieldsCacheLogger sets the logger.
func WithFieldsCacheLogger(logger observability.Logger) FieldsCacheOption {
	return func(c *FieldsCache) {
		c.logger = logger
	}
}

// NewFieldsCache wraps backend. A nil backend disables caching.
func NewFieldsCache(backend Cache, opts ...FieldsCacheOption) *FieldsCache {
	if backend == nil {
		backend = disabledCache{}
	}

	c := &FieldsCache{
		backend: backend,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NopLogger()
	}
	return c
}

// Key returns the backend key for raw parsed against schemaName. An empty
// schemaName stands for schema-less parsing.
func (c *FieldsCache) Key(schemaName, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	key := fieldsKeyPrefix + ":"
	if c.generation != "" {
		key += c.generation + ":"
	}
	return key + schemaName + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached tree for raw, if any.
func (c *FieldsCache) Get(ctx context.Context, schemaName, raw string) (*fields.Fields, bool) {
	key := c.Key(schemaName, raw)

	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheDisabled) {
			c.logger.Warn("fields cache lookup failed",
				observability.String("schema", schemaName),
				observability.Error(err))
		}
		return nil, false
	}

	f, err := DecodeFields(data)
	if err != nil {
		GetCacheMetrics().codecErrorsTotal.WithLabelValues("decode").Inc()
		c.logger.Warn("dropping undecodable fields cache entry",
			observability.String("schema", schemaName),
			observability.Error(err))
		_ = c.backend.Delete(ctx, key)
		return nil, false
	}
	return f, true
}

// Set stores f as the parse of raw.
func (c *FieldsCache) Set(ctx context.Context, schemaName, raw string, f *fields.Fields) {
	data, err := EncodeFields(f)
	if err != nil {
		GetCacheMetrics().codecErrorsTotal.WithLabelValues("encode").Inc()
		c.logger.Warn("failed to encode fields for cache",
			observability.String("schema", schemaName),
			observability.Error(err))
		return
	}

	err = c.backend.Set(ctx, c.Key(schemaName, raw), data, c.ttl)
	if err != nil && !errors.Is(err, ErrCacheDisabled) {
		c.logger.Warn("fields cache store failed",
			observability.String("schema", schemaName),
			observability.Error(err))
	}
}

// GetOrParse returns the cached tree for raw, or calls parse and caches its
// result. Parse errors are returned and never cached.
func (c *FieldsCache) GetOrParse(
	ctx context.Context,
	schemaName, raw string,
	parse func() (*fields.Fields, error),
) (*fields.Fields, error) {
	if f, ok := c.Get(ctx, schemaName, raw); ok {
		return f, nil
	}

	f, err := parse()
	if err != nil {
		return nil, err
	}

	c.Set(ctx, schemaName, raw, f)
	return f, nil
}

// Close closes the backend.
func (c *FieldsCache) Close() error {
	return c.backend.Close()
}

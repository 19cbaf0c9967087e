package server

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avafields/internal/cache"
	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/observability"
	"github.com/vyrodovalexey/avafields/internal/schema"
	"github.com/vyrodovalexey/avafields/internal/store"
)

// ErrNoState indicates a server created without a State.
var ErrNoState = errors.New("server state is required")

// State is one immutable generation of served data.
type State struct {
	Registry      *schema.Registry
	Store         *store.Store
	Parser        *fields.Parser
	Trees         *cache.FieldsCache
	DefaultFields string
	Generation    string
}

// NewState assembles a State. Configured presets are added to the built-in
// ones, and cached trees are keyed by a fresh generation so entries of an
// earlier State are never served.
func NewState(
	cfg *config.Config,
	registry *schema.Registry,
	st *store.Store,
	backend cache.Cache,
	logger observability.Logger,
) *State {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	presets := fields.DefaultPresets()
	for name, properties := range cfg.Fields.Presets {
		presets[name] = fields.KnownPreset(properties)
	}

	opts := []fields.ParserOption{
		fields.WithLogger(logger.Named("parser")),
		fields.WithPresets(presets),
		fields.WithMaxLength(cfg.Fields.MaxLength),
	}
	if registry != nil {
		opts = append(opts, fields.WithSchemaResolver(registry.Child))
	}

	defaultFields := cfg.Fields.Default
	if defaultFields == "" {
		defaultFields = config.DefaultFields
	}

	generation := uuid.New().String()

	return &State{
		Registry: registry,
		Store:    st,
		Parser:   fields.NewParser(opts...),
		Trees: cache.NewFieldsCache(backend,
			cache.WithTTL(cfg.Cache.TTL.Duration()),
			cache.WithGeneration(generation),
			cache.WithFieldsCacheLogger(logger.Named("cache")),
		),
		DefaultFields: defaultFields,
		Generation:    generation,
	}
}

// LoadState reads the schemas and dataset named by cfg and checks the
// dataset against the schemas. An empty data path serves no resources.
func LoadState(cfg *config.Config, backend cache.Cache, logger observability.Logger) (*State, error) {
	registry, err := schema.Load(cfg.Schemas.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	st, err := store.New(nil)
	if err != nil {
		return nil, err
	}
	if cfg.Data.Path != "" {
		st, err = store.Load(cfg.Data.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset: %w", err)
		}
	}

	if err := st.Validate(registry); err != nil {
		return nil, fmt.Errorf("dataset does not match schemas: %w", err)
	}

	return NewState(cfg, registry, st, backend, logger), nil
}

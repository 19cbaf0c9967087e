// Package cache caches parsed fields expressions.
//
// Two byte-oriented backends implement Cache: an in-process LRU and Redis,
// the latter guarded by a circuit breaker so an unreachable server degrades
// to parsing on every request instead of failing them. FieldsCache sits on
// top and stores materialized Fields trees in a compact CBOR encoding:
//
//	backend, err := cache.New(&cfg.Cache, logger)
//	if err != nil {
//	    return err
//	}
//	fc := cache.NewFieldsCache(backend, cache.WithGeneration(schemaDigest))
//
//	f, err := fc.GetOrParse(ctx, "dataElement", raw, func() (*fields.Fields, error) {
//	    return parser.ParseSchema(ctx, raw, registry.Get("dataElement"))
//	})
//
// All implementations are safe for concurrent use.
package cache

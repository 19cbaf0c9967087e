// Package server exposes the dataset over HTTP with field selection.
//
// Every read endpoint accepts a fields query parameter:
//
//	GET /api/dataElements?fields=id,name,categoryCombo[id,name]
//	GET /api/dataElements/fbfJHSPpUQD?fields=:identifiable
//	GET /api/schemas/dataElement?fields=properties[name,kind]
//
// Resources with a registered schema are parsed schema-aware, so presets
// expand and bare references select their id. Other resources use
// schema-less parsing.
//
// The served State (schemas, dataset, parser and tree cache) is swapped
// atomically on reload. Requests in flight keep the State they started with.
package server

// Package fields implements the field-selection language used by the
// `fields` request parameter.
//
// An expression names the fields of an object graph to render, with nested
// selections, exclusions, presets and per-field transformations:
//
//	id,name,group[code,name]          nested selection
//	*,!password                       everything but password
//	:identifiable,dataSets~size       preset plus a transformed field
//	list~keyBy(uid)~rename(byUid)     transformers with arguments
//
// # Pipeline
//
// Parsing runs in fixed stages: Tokenize splits the input, the token parser
// builds a mutable accumulator tree, schema-aware parsing then expands
// presets and reference/complex paths, and materialization produces the
// immutable Fields tree while validating transformations.
//
//	p := fields.NewParser(fields.WithSchemaResolver(registry.Child))
//	f, err := p.ParseSchema(ctx, "name,group[code]", registry.Get("dataElement"))
//	if err != nil {
//	    // errors.Is(err, fields.ErrSyntax) or errors.Is(err, fields.ErrValidation)
//	}
//	f.Test("name")                  // true
//	f.Children("group").Test("id")  // false
//
// # Precedence
//
// Exclusion beats inclusion at the same level, children of an excluded field
// are unreachable, and "*" and preset tokens can never be excluded.
//
// # Transformations
//
// Transformers are attached with "::", "~" or "|" and applied by the runtime
// filter after nested filtering. rename always runs last.
package fields

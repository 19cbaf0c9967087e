package fields

import "github.com/vyrodovalexey/avafields/internal/schema"

// identifierField is the implicit selection for bare reference fields.
const identifierField = "id"

// expandPaths gives bare reference fields an implicit "[id]" and bare complex
// fields an implicit "[*]". Fields with explicit children, the wildcard, and
// names unknown to the schema are left alone.
func expandPaths(acc *accumulator, s *schema.Schema, resolve SchemaResolver) {
	if s == nil {
		return
	}

	for _, name := range acc.includes.sorted() {
		if name == AllToken || acc.hasChild(name) {
			continue
		}
		prop, ok := s.Property(name)
		if !ok {
			continue
		}
		switch {
		case prop.IsReference():
			acc.child(name).includes.add(identifierField)
		case prop.IsComplex():
			acc.child(name).includes.add(AllToken)
		}
	}

	for _, key := range acc.childNames() {
		expandPaths(acc.children[key], resolve(s, key), resolve)
	}
}

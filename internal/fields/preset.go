package fields

import (
	"sort"

	"github.com/vyrodovalexey/avafields/internal/schema"
)

// Preset expands to a set of field names for a schema.
type Preset func(s *schema.Schema) []string

// Presets maps preset tokens (":simple") to their expansions.
type Presets map[string]Preset

// Preset names.
const (
	PresetAll          = ":all"
	PresetSimple       = ":simple"
	PresetIdentifiable = ":identifiable"
	PresetNameable     = ":nameable"
	PresetOwner        = ":owner"
	PresetPersisted    = ":persisted"
)

var (
	identifiableProperties = []string{"id", "name", "code", "created", "lastUpdated", "lastUpdatedBy"}
	nameableProperties     = append(append([]string{}, identifiableProperties...), "shortName", "description")
)

// DefaultPresets returns the built-in preset table. The wildcard is always
// present and terminal.
func DefaultPresets() Presets {
	return Presets{
		AllToken:           allPreset,
		PresetAll:          allPreset,
		PresetSimple:       filterPreset(schema.Property.IsSimple),
		PresetIdentifiable: KnownPreset(identifiableProperties),
		PresetNameable:     KnownPreset(nameableProperties),
		PresetOwner:        filterPreset(func(p schema.Property) bool { return p.Owner }),
		PresetPersisted:    filterPreset(func(p schema.Property) bool { return p.Persisted }),
	}
}

func allPreset(*schema.Schema) []string {
	return []string{AllToken}
}

// KnownPreset selects the listed names the schema actually declares.
// Configured presets are built with it.
func KnownPreset(names []string) Preset {
	return func(s *schema.Schema) []string {
		var out []string
		for _, n := range names {
			if s.HasProperty(n) {
				out = append(out, n)
			}
		}
		return out
	}
}

func filterPreset(fn func(schema.Property) bool) Preset {
	return func(s *schema.Schema) []string {
		return s.Filter(fn)
	}
}

// Names returns the preset tokens, sorted.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unexcludable returns the names a "!" cannot exclude: the wildcard and
// every preset token.
func (p Presets) unexcludable() nameSet {
	set := nameSet{AllToken: {}}
	for name := range p {
		set.add(name)
	}
	return set
}

// SchemaResolver returns the schema of the objects held by field on parent,
// or nil when it cannot be resolved.
type SchemaResolver func(parent *schema.Schema, field string) *schema.Schema

// expandPresets replaces preset tokens in every include set with their
// expansion for the node's schema. Subtrees without a schema are left alone.
func expandPresets(acc *accumulator, s *schema.Schema, resolve SchemaResolver, presets Presets) {
	if s == nil {
		return
	}

	for _, name := range acc.includes.sorted() {
		if name == AllToken {
			continue
		}
		preset, ok := presets[name]
		if !ok {
			continue
		}
		acc.includes.remove(name)
		for _, expanded := range preset(s) {
			acc.includes.add(expanded)
		}
	}

	for _, key := range acc.childNames() {
		expandPresets(acc.children[key], resolve(s, key), resolve, presets)
	}
}

// Package schema describes the object types served by avafields.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// PropertyKind classifies how a property is rendered.
type PropertyKind int

// Property kinds.
const (
	// KindSimple is a scalar property (string, number, date...).
	KindSimple PropertyKind = iota

	// KindReference points at another identifiable object.
	KindReference

	// KindComplex is an embedded object without its own identity.
	KindComplex
)

var propertyKindNames = map[PropertyKind]string{
	KindSimple:    "simple",
	KindReference: "reference",
	KindComplex:   "complex",
}

// String returns the configuration name of the kind.
func (k PropertyKind) String() string {
	if name, ok := propertyKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PropertyKind(%d)", int(k))
}

// ParsePropertyKind parses a kind name. An empty name is KindSimple.
func ParsePropertyKind(name string) (PropertyKind, error) {
	if name == "" {
		return KindSimple, nil
	}
	for kind, kindName := range propertyKindNames {
		if strings.EqualFold(kindName, name) {
			return kind, nil
		}
	}
	return KindSimple, fmt.Errorf("%w: unknown property kind %q", ErrInvalidSchema, name)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *PropertyKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	kind, err := ParsePropertyKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (k PropertyKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// MarshalJSON implements json.Marshaler.
func (k PropertyKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Property is a single property of a schema.
type Property struct {
	// Name is the field name as it appears in responses.
	Name string `yaml:"name" json:"name"`

	// Kind is the rendering kind of the property (or of its items for collections).
	Kind PropertyKind `yaml:"kind,omitempty" json:"kind"`

	// Collection marks list-valued properties.
	Collection bool `yaml:"collection,omitempty" json:"collection,omitempty"`

	// Type names the schema of referenced or embedded objects.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Owner marks properties owned by the object (as opposed to inverse sides).
	Owner bool `yaml:"owner,omitempty" json:"owner,omitempty"`

	// Persisted marks properties backed by storage.
	Persisted bool `yaml:"persisted,omitempty" json:"persisted,omitempty"`
}

// IsReference reports whether the property (or its items) references identifiable objects.
func (p Property) IsReference() bool {
	return p.Kind == KindReference
}

// IsComplex reports whether the property (or its items) is an embedded object.
func (p Property) IsComplex() bool {
	return p.Kind == KindComplex
}

// IsSimple reports whether the property is a plain scalar value.
func (p Property) IsSimple() bool {
	return p.Kind == KindSimple && !p.Collection
}

// Schema describes one object type.
type Schema struct {
	// Name is the singular type name, e.g. "dataElement".
	Name string `yaml:"name" json:"name"`

	// Plural is the collection name used in URLs, e.g. "dataElements".
	Plural string `yaml:"plural" json:"plural"`

	// Properties lists the properties in declaration order.
	Properties []Property `yaml:"properties" json:"properties"`

	index map[string]int
}

// New creates a schema from its properties.
func New(name, plural string, properties ...Property) *Schema {
	s := &Schema{Name: name, Plural: plural, Properties: properties}
	s.buildIndex()
	return s
}

func (s *Schema) buildIndex() {
	s.index = make(map[string]int, len(s.Properties))
	for i, p := range s.Properties {
		if _, dup := s.index[p.Name]; !dup {
			s.index[p.Name] = i
		}
	}
}

// Property looks up a property by name.
func (s *Schema) Property(name string) (Property, bool) {
	if s == nil {
		return Property{}, false
	}
	if s.index == nil {
		s.buildIndex()
	}
	i, ok := s.index[name]
	if !ok {
		return Property{}, false
	}
	return s.Properties[i], true
}

// HasProperty reports whether the schema declares name.
func (s *Schema) HasProperty(name string) bool {
	_, ok := s.Property(name)
	return ok
}

// PropertyNames returns the property names in declaration order.
func (s *Schema) PropertyNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	return names
}

// Filter returns the names of properties matching fn, in declaration order.
func (s *Schema) Filter(fn func(Property) bool) []string {
	if s == nil {
		return nil
	}
	var names []string
	for _, p := range s.Properties {
		if fn(p) {
			names = append(names, p.Name)
		}
	}
	return names
}

// validate checks the schema in isolation.
func (s *Schema) validate() []string {
	var problems []string
	if s.Name == "" {
		problems = append(problems, "schema without name")
		return problems
	}
	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		switch {
		case p.Name == "":
			problems = append(problems, fmt.Sprintf("%s: property without name", s.Name))
		case seen[p.Name]:
			problems = append(problems, fmt.Sprintf("%s: duplicate property %q", s.Name, p.Name))
		}
		seen[p.Name] = true
		if (p.IsReference() || p.IsComplex()) && p.Type == "" {
			problems = append(problems, fmt.Sprintf("%s.%s: %s property requires a type", s.Name, p.Name, p.Kind))
		}
	}
	sort.Strings(problems)
	return problems
}

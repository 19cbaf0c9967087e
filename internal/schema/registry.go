package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common schema errors.
var (
	// ErrInvalidSchema indicates a malformed schema definition.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrSchemaNotFound indicates that no schema is registered under a name.
	ErrSchemaNotFound = errors.New("schema not found")
)

// Registry holds the known schemas. It is immutable once built and safe for
// concurrent use.
type Registry struct {
	byName   map[string]*Schema
	byPlural map[string]*Schema
}

// document is the YAML layout of a schema file.
type document struct {
	Schemas []*Schema `yaml:"schemas"`
}

// NewRegistry builds a registry from schemas and validates it.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]*Schema, len(schemas)),
		byPlural: make(map[string]*Schema, len(schemas)),
	}

	var problems []string
	for _, s := range schemas {
		if s == nil {
			continue
		}
		s.buildIndex()
		problems = append(problems, s.validate()...)
		if s.Name == "" {
			continue
		}
		if _, dup := r.byName[s.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate schema %q", s.Name))
			continue
		}
		r.byName[s.Name] = s
		if s.Plural != "" {
			r.byPlural[s.Plural] = s
		}
	}

	problems = append(problems, r.unresolvedTypes()...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchema, strings.Join(problems, "; "))
	}

	return r, nil
}

// unresolvedTypes reports properties whose type names an unknown schema.
func (r *Registry) unresolvedTypes() []string {
	var problems []string
	for _, name := range r.Names() {
		s := r.byName[name]
		for _, p := range s.Properties {
			if p.Type == "" {
				continue
			}
			if _, ok := r.byName[p.Type]; !ok {
				problems = append(problems, fmt.Sprintf("%s.%s: unknown type %q", s.Name, p.Name, p.Type))
			}
		}
	}
	return problems
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return LoadFromReader(f)
}

// LoadFromReader reads a registry from YAML.
func LoadFromReader(r io.Reader) (*Registry, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return NewRegistry(doc.Schemas...)
}

// Get returns the schema registered under name, or nil.
func (r *Registry) Get(name string) *Schema {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// GetByPlural returns the schema whose plural is plural, or nil.
func (r *Registry) GetByPlural(plural string) *Schema {
	if r == nil {
		return nil
	}
	return r.byPlural[plural]
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	s := r.Get(name)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	return s, nil
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byName)
}

// Child resolves the schema of the objects held by field on parent. It returns
// nil when parent is nil, the field is unknown, or the field is scalar.
func (r *Registry) Child(parent *Schema, field string) *Schema {
	if r == nil || parent == nil {
		return nil
	}
	p, ok := parent.Property(field)
	if !ok || p.Type == "" {
		return nil
	}
	return r.byName[p.Type]
}

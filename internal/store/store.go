package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/schema"
)

// IDProperty is the member identifying an object within its resource.
const IDProperty = "id"

// Common store errors.
var (
	// ErrInvalidDataset indicates a malformed dataset document.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrResourceNotFound indicates an unknown resource name.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrObjectNotFound indicates an unknown object id.
	ErrObjectNotFound = errors.New("object not found")
)

type resource struct {
	items []*fields.Object
	byID  map[string]*fields.Object
}

// Store is an immutable in-memory dataset, safe for concurrent reads.
// Callers must not modify returned objects.
type Store struct {
	resources map[string]*resource
}

// New builds a store from objects grouped by resource. Every object must
// carry a unique string id.
func New(data map[string][]*fields.Object) (*Store, error) {
	s := &Store{resources: make(map[string]*resource, len(data))}

	var problems *multierror.Error
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := &resource{byID: make(map[string]*fields.Object, len(data[name]))}
		for i, obj := range data[name] {
			id, err := objectID(obj)
			if err != nil {
				problems = multierror.Append(problems, fmt.Errorf("%s[%d]: %w", name, i, err))
				continue
			}
			if _, dup := res.byID[id]; dup {
				problems = multierror.Append(problems, fmt.Errorf("%s[%d]: duplicate id %q", name, i, id))
				continue
			}
			res.byID[id] = obj
			res.items = append(res.items, obj)
		}
		s.resources[name] = res
	}

	if err := problems.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	return s, nil
}

func objectID(obj *fields.Object) (string, error) {
	if obj == nil {
		return "", errors.New("object is null")
	}
	v, ok := obj.Get(IDProperty)
	if !ok {
		return "", errors.New("missing id")
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("id must be a non-empty string, got %v", v)
	}
	return id, nil
}

// Load reads a dataset from a YAML file.
func Load(path string) (*Store, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return LoadFromReader(f)
}

// LoadFromReader reads a dataset from YAML. An empty document is an empty
// dataset.
func LoadFromReader(r io.Reader) (*Store, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	data, err := decodeDocument(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	return New(data)
}

// Resources returns the resource names, sorted.
func (s *Store) Resources() []string {
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether resource exists.
func (s *Store) Has(name string) bool {
	_, ok := s.resources[name]
	return ok
}

// List returns the objects of a resource in dataset order.
func (s *Store) List(name string) ([]*fields.Object, error) {
	res, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}
	return res.items, nil
}

// Get returns one object of a resource by id.
func (s *Store) Get(name, id string) (*fields.Object, error) {
	res, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}
	obj, ok := res.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, name, id)
	}
	return obj, nil
}

// Len returns the number of objects across all resources.
func (s *Store) Len() int {
	n := 0
	for _, res := range s.resources {
		n += len(res.items)
	}
	return n
}

// Validate checks the dataset against registry: every resource must be the
// plural of a registered schema and every top-level member a declared
// property. All problems are reported.
func (s *Store) Validate(registry *schema.Registry) error {
	var problems *multierror.Error

	for _, name := range s.Resources() {
		sch := registry.GetByPlural(name)
		if sch == nil {
			problems = multierror.Append(problems, fmt.Errorf("%s: no schema with this plural", name))
			continue
		}

		unknown := make(map[string]bool)
		for _, obj := range s.resources[name].items {
			for _, key := range obj.Keys() {
				if !sch.HasProperty(key) && !unknown[key] {
					unknown[key] = true
					problems = multierror.Append(problems,
						fmt.Errorf("%s: property %q is not declared by schema %s", name, key, sch.Name))
				}
			}
		}
	}

	return problems.ErrorOrNil()
}

package fields

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Fields is a materialized, immutable field selection. Trees are safe to
// share between goroutines; nothing is mutated after construction.
//
// When includesAll is true every field not named in fields is selected;
// otherwise only the named fields are.
type Fields struct {
	includesAll     bool
	fields          nameSet
	children        map[string]*Fields
	transformations map[string][]Transformation
}

var (
	// All selects every field at every depth.
	All = &Fields{includesAll: true}

	// None selects nothing.
	None = &Fields{}
)

// NewFields builds a tree node. When includesAll is true names are the
// exclusions, otherwise the inclusions. The inputs are copied.
func NewFields(
	includesAll bool,
	names []string,
	children map[string]*Fields,
	transformations map[string][]Transformation,
) *Fields {
	f := &Fields{includesAll: includesAll}

	if len(names) > 0 {
		f.fields = make(nameSet, len(names))
		for _, n := range names {
			f.fields.add(n)
		}
	}

	if len(children) > 0 {
		f.children = make(map[string]*Fields, len(children))
		for k, c := range children {
			if c != nil {
				f.children[k] = c
			}
		}
	}

	if len(transformations) > 0 {
		f.transformations = make(map[string][]Transformation, len(transformations))
		for k, list := range transformations {
			if len(list) == 0 {
				continue
			}
			cp := make([]Transformation, len(list))
			copy(cp, list)
			f.transformations[k] = cp
		}
	}

	return f
}

// IncludesAll reports whether unnamed fields are selected.
func (f *Fields) IncludesAll() bool {
	return f.includesAll
}

// Test reports whether name is selected.
func (f *Fields) Test(name string) bool {
	if f.includesAll {
		return !f.fields.has(name)
	}
	return f.fields.has(name)
}

// Children returns the selection for the value of name: None when name is
// not selected, All when no nested selection was given.
func (f *Fields) Children(name string) *Fields {
	if !f.Test(name) {
		return None
	}
	if c, ok := f.children[name]; ok {
		return c
	}
	return All
}

// Transformations returns the transformations for name, rename last. The
// returned slice must not be modified.
func (f *Fields) Transformations(name string) []Transformation {
	if !f.Test(name) {
		return nil
	}
	list := f.transformations[name]
	return list[:len(list):len(list)]
}

// HasTransformations reports whether any field of this node is transformed.
func (f *Fields) HasTransformations() bool {
	return len(f.transformations) > 0
}

// Names returns the named fields, sorted: exclusions when IncludesAll,
// inclusions otherwise.
func (f *Fields) Names() []string {
	return f.fields.sorted()
}

// ChildNames returns the fields with explicit nested selections, sorted.
func (f *Fields) ChildNames() []string {
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransformedNames returns the fields carrying transformations, sorted.
func (f *Fields) TransformedNames() []string {
	names := make([]string, 0, len(f.transformations))
	for name := range f.transformations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports structural equality.
func (f *Fields) Equal(other *Fields) bool {
	if f == other {
		return true
	}
	if f == nil || other == nil {
		return false
	}
	if f.includesAll != other.includesAll || len(f.fields) != len(other.fields) {
		return false
	}
	for name := range f.fields {
		if !other.fields.has(name) {
			return false
		}
	}
	if len(f.children) != len(other.children) {
		return false
	}
	for name, c := range f.children {
		oc, ok := other.children[name]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	if len(f.transformations) != len(other.transformations) {
		return false
	}
	for name, list := range f.transformations {
		if !equalTransformations(list, other.transformations[name]) {
			return false
		}
	}
	return true
}

func equalTransformations(a, b []Transformation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || len(a[i].Arguments) != len(b[i].Arguments) {
			return false
		}
		for j := range a[i].Arguments {
			if a[i].Arguments[j] != b[i].Arguments[j] {
				return false
			}
		}
	}
	return true
}

// String renders the tree in expression syntax, e.g. "id,group[code]".
// Exclusions are prefixed with "!" after a leading "*".
func (f *Fields) String() string {
	var sb strings.Builder
	f.writeTo(&sb)
	return sb.String()
}

func (f *Fields) writeTo(sb *strings.Builder) {
	names := f.fields.sorted()
	if !f.includesAll {
		// children are only reachable through included names
		for i, name := range names {
			if i > 0 {
				sb.WriteByte(',')
			}
			f.writeMember(sb, name)
		}
		return
	}

	sb.WriteString(AllToken)
	for _, name := range names {
		sb.WriteString(",!")
		sb.WriteString(name)
	}
	for _, name := range f.ChildNames() {
		sb.WriteByte(',')
		f.writeMember(sb, name)
	}
	for _, name := range f.TransformedNames() {
		if _, hasChild := f.children[name]; !hasChild && f.Test(name) {
			sb.WriteByte(',')
			f.writeMember(sb, name)
		}
	}
}

func (f *Fields) writeMember(sb *strings.Builder, name string) {
	sb.WriteString(name)
	for _, t := range f.transformations[name] {
		sb.WriteByte('~')
		sb.WriteString(t.String())
	}
	if c, ok := f.children[name]; ok {
		sb.WriteByte('[')
		c.writeTo(sb)
		sb.WriteByte(']')
	}
}

// fieldsJSON is the diagnostic JSON layout of a tree.
type fieldsJSON struct {
	IncludesAll     bool                        `json:"includesAll"`
	Fields          []string                    `json:"fields,omitempty"`
	Children        map[string]*Fields          `json:"children,omitempty"`
	Transformations map[string][]Transformation `json:"transformations,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(fieldsJSON{
		IncludesAll:     f.includesAll,
		Fields:          f.fields.sorted(),
		Children:        f.children,
		Transformations: f.transformations,
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

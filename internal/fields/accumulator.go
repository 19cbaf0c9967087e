package fields

import "sort"

// nameSet is a set of field names.
type nameSet map[string]struct{}

func (s nameSet) add(name string) {
	s[name] = struct{}{}
}

func (s nameSet) remove(name string) {
	delete(s, name)
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// sorted returns the members in lexical order so passes over the set are
// deterministic and may mutate it while iterating the snapshot.
func (s nameSet) sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// accumulator collects the decisions for one nesting level while parsing.
// It lives only for the duration of a single parse.
type accumulator struct {
	includes        nameSet
	excludes        nameSet
	children        map[string]*accumulator
	transformations map[string][]Transformation
}

func newAccumulator() *accumulator {
	return &accumulator{
		includes:        make(nameSet),
		excludes:        make(nameSet),
		children:        make(map[string]*accumulator),
		transformations: make(map[string][]Transformation),
	}
}

// child returns the accumulator for name, creating it on first use. Repeated
// blocks for the same field ("a[b],a[c]") share one child.
func (a *accumulator) child(name string) *accumulator {
	c, ok := a.children[name]
	if !ok {
		c = newAccumulator()
		a.children[name] = c
	}
	return c
}

func (a *accumulator) hasChild(name string) bool {
	_, ok := a.children[name]
	return ok
}

func (a *accumulator) childNames() []string {
	names := make([]string, 0, len(a.children))
	for name := range a.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

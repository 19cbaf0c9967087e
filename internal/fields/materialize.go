package fields

import (
	"fmt"
	"sort"
	"strings"
)

// materialize converts the accumulator tree into an immutable Fields tree,
// validating every transformation. All problems are reported together.
func materialize(root *accumulator) (*Fields, error) {
	var problems problemList
	f := buildNode(root, root.includes.has(AllToken), "", &problems)
	if err := problems.err(); err != nil {
		return nil, err
	}
	return f, nil
}

func buildNode(acc *accumulator, includesAll bool, path string, problems *problemList) *Fields {
	f := &Fields{includesAll: includesAll, fields: make(nameSet)}

	if includesAll {
		for name := range acc.excludes {
			f.fields.add(name)
		}
	} else {
		// explicit exclusion wins over inclusion at the same level
		for name := range acc.includes {
			if name != AllToken && !acc.excludes.has(name) {
				f.fields.add(name)
			}
		}
	}

	if len(acc.transformations) > 0 {
		f.transformations = finalizeTransformations(acc, path, problems)
	}

	for _, key := range acc.childNames() {
		if !f.Test(key) {
			continue
		}
		child := acc.children[key]
		// an exclusion-only block such as "a[!b]" keeps the other fields
		childAll := child.includes.has(AllToken) || len(child.includes) == 0
		if f.children == nil {
			f.children = make(map[string]*Fields)
		}
		f.children[key] = buildNode(child, childAll, joinPath(path, key), problems)
	}

	return f
}

// finalizeTransformations validates each field's transformations and moves
// rename to the end, keeping the relative order of the others.
func finalizeTransformations(acc *accumulator, path string, problems *problemList) map[string][]Transformation {
	fieldNames := make([]string, 0, len(acc.transformations))
	for name := range acc.transformations {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	var unknown []string
	seenUnknown := make(nameSet)
	for _, field := range fieldNames {
		for _, t := range acc.transformations[field] {
			if _, ok := transformers[t.Name]; !ok && !seenUnknown.has(t.Name) {
				seenUnknown.add(t.Name)
				unknown = append(unknown, fmt.Sprintf("%q", t.Name))
			}
		}
	}
	if len(unknown) > 0 {
		location := "root"
		if path != "" {
			location = path
		}
		problems.add(fmt.Errorf("%w(s) %s at %s", ErrUnknownTransformer, strings.Join(unknown, ", "), location))
	}

	result := make(map[string][]Transformation, len(fieldNames))
	for _, field := range fieldNames {
		list := acc.transformations[field]
		fieldPath := joinPath(path, field)

		if dups := duplicateNames(list); len(dups) > 0 {
			problems.add(fmt.Errorf("%w(s) %s on field %q", ErrDuplicateTransformer, strings.Join(dups, ", "), fieldPath))
		}

		for _, t := range list {
			tr, ok := transformers[t.Name]
			if !ok {
				continue
			}
			if err := tr.Validate(t.Arguments); err != nil {
				problems.add(fmt.Errorf("field %q: %w", fieldPath, err))
			}
		}

		sorted := make([]Transformation, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Name != TransformRename && sorted[j].Name == TransformRename
		})
		result[field] = sorted
	}

	return result
}

func duplicateNames(list []Transformation) []string {
	seen := make(nameSet, len(list))
	reported := make(nameSet)
	var dups []string
	for _, t := range list {
		if seen.has(t.Name) && !reported.has(t.Name) {
			reported.add(t.Name)
			dups = append(dups, t.Name)
		}
		seen.add(t.Name)
	}
	return dups
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

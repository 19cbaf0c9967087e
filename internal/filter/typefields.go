package filter

import (
	"reflect"
	"strings"
	"sync"
)

// structField describes one JSON member of a struct type.
type structField struct {
	name      string
	index     []int
	omitEmpty bool
}

var fieldCache sync.Map // map[reflect.Type][]structField

func cachedFields(t reflect.Type) []structField {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]structField)
	}
	f, _ := fieldCache.LoadOrStore(t, typeFields(t))
	return f.([]structField)
}

// typeFields lists the members of t in declaration order. Fields of
// untagged embedded structs are promoted; a shallower field hides deeper
// ones of the same name.
func typeFields(t reflect.Type) []structField {
	var out []structField
	depthOf := make(map[string]int)
	posOf := make(map[string]int)

	var walk func(t reflect.Type, index []int, depth int, visited map[reflect.Type]bool)
	walk = func(t reflect.Type, index []int, depth int, visited map[reflect.Type]bool) {
		if visited[t] {
			return
		}
		visited[t] = true
		defer delete(visited, t)

		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("json")
			if tag == "-" {
				continue
			}
			name, opts, _ := strings.Cut(tag, ",")

			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}

			idx := make([]int, len(index)+1)
			copy(idx, index)
			idx[len(index)] = i

			if sf.Anonymous && name == "" && ft.Kind() == reflect.Struct {
				// fields of unexported embedded types cannot be read through reflection
				if sf.IsExported() {
					walk(ft, idx, depth+1, visited)
				}
				continue
			}
			if !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}

			field := structField{
				name:      name,
				index:     idx,
				omitEmpty: hasOption(opts, "omitempty"),
			}
			if prev, seen := depthOf[name]; seen {
				if depth < prev {
					out[posOf[name]] = field
					depthOf[name] = depth
				}
				continue
			}
			depthOf[name] = depth
			posOf[name] = len(out)
			out = append(out, field)
		}
	}
	walk(t, nil, 0, make(map[reflect.Type]bool))

	return out
}

func hasOption(opts, option string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == option {
			return true
		}
	}
	return false
}

// fieldByIndex follows index through embedded pointers, reporting false
// when a nil embedded pointer hides the field.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

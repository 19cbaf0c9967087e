package fields

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Transformer names.
const (
	TransformIsEmpty    = "isEmpty"
	TransformIsNotEmpty = "isNotEmpty"
	TransformSize       = "size"
	TransformKeyBy      = "keyBy"
	TransformPluck      = "pluck"
	TransformRename     = "rename"
)

// defaultPropertyArg is the property keyBy and pluck use without an argument.
const defaultPropertyArg = "id"

// Transformation is a transformer invocation attached to a field.
type Transformation struct {
	Name      string   `json:"name" cbor:"name"`
	Arguments []string `json:"arguments,omitempty" cbor:"arguments,omitempty"`
}

// Arg returns the first argument, or "" when there is none.
func (t Transformation) Arg() string {
	if len(t.Arguments) == 0 {
		return ""
	}
	return t.Arguments[0]
}

// String formats the transformation in expression syntax.
func (t Transformation) String() string {
	if len(t.Arguments) == 0 {
		return t.Name
	}
	return t.Name + "(" + strings.Join(t.Arguments, ";") + ")"
}

// FieldValue is the single-field container a transformation mutates.
type FieldValue struct {
	Name  string
	Value interface{}
}

// Transformer reshapes a field value.
type Transformer interface {
	// Apply mutates fv in place. arg is the first argument or "".
	Apply(fv *FieldValue, arg string)

	// Validate checks the arguments of an invocation.
	Validate(args []string) error
}

type transformer struct {
	apply    func(fv *FieldValue, arg string)
	validate func(args []string) error
}

func (t transformer) Apply(fv *FieldValue, arg string) {
	t.apply(fv, arg)
}

func (t transformer) Validate(args []string) error {
	if t.validate == nil {
		return nil
	}
	return t.validate(args)
}

// transformers is the fixed registry. It is never modified after init.
var transformers = map[string]Transformer{
	TransformIsEmpty:    transformer{apply: applyIsEmpty},
	TransformIsNotEmpty: transformer{apply: applyIsNotEmpty},
	TransformSize:       transformer{apply: applySize},
	TransformKeyBy:      transformer{apply: applyKeyBy},
	TransformPluck:      transformer{apply: applyPluck},
	TransformRename:     transformer{apply: applyRename, validate: validateRename},
}

// LookupTransformer returns the transformer registered under name.
func LookupTransformer(name string) (Transformer, bool) {
	t, ok := transformers[name]
	return t, ok
}

// TransformerNames returns the registered transformer names, sorted.
func TransformerNames() []string {
	names := make([]string, 0, len(transformers))
	for name := range transformers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyTransformations runs transformations over fv in order. Unknown
// transformers are skipped; materialized trees never contain them.
func ApplyTransformations(fv *FieldValue, transformations []Transformation) {
	for _, t := range transformations {
		if tr, ok := transformers[t.Name]; ok {
			tr.Apply(fv, t.Arg())
		}
	}
}

func applyIsEmpty(fv *FieldValue, _ string) {
	if arr, ok := fv.Value.([]interface{}); ok {
		fv.Value = len(arr) == 0
	}
}

func applyIsNotEmpty(fv *FieldValue, _ string) {
	if arr, ok := fv.Value.([]interface{}); ok {
		fv.Value = len(arr) > 0
	}
}

func applySize(fv *FieldValue, _ string) {
	switch v := fv.Value.(type) {
	case []interface{}:
		fv.Value = len(v)
	case string:
		fv.Value = utf8.RuneCountInString(v)
	}
}

func applyKeyBy(fv *FieldValue, arg string) {
	arr, ok := fv.Value.([]interface{})
	if !ok {
		return
	}
	if arg == "" {
		arg = defaultPropertyArg
	}

	result := NewObject()
	for _, item := range arr {
		obj, ok := item.(*Object)
		if !ok {
			continue
		}
		raw, ok := obj.Get(arg)
		if !ok {
			continue
		}
		key := keyString(raw)
		if key == "" {
			continue
		}

		existing, seen := result.Get(key)
		switch {
		case !seen:
			result.Set(key, obj)
		case isCoalesced(existing):
			result.Set(key, append(existing.([]interface{}), obj))
		default:
			result.Set(key, []interface{}{existing, obj})
		}
	}
	fv.Value = result
}

// isCoalesced reports whether a keyBy slot already holds colliding objects.
// Slots only ever hold *Object or the []interface{} built on collision.
func isCoalesced(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

func keyString(v interface{}) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case json.Number:
		return k.String()
	case bool:
		return strconv.FormatBool(k)
	default:
		return fmt.Sprint(k)
	}
}

func applyPluck(fv *FieldValue, arg string) {
	arr, ok := fv.Value.([]interface{})
	if !ok {
		return
	}
	if arg == "" {
		arg = defaultPropertyArg
	}

	result := make([]interface{}, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(*Object); ok {
			if v, found := obj.Get(arg); found {
				result = append(result, v)
				continue
			}
		}
		result = append(result, item)
	}
	fv.Value = result
}

func applyRename(fv *FieldValue, arg string) {
	if arg != "" {
		fv.Name = arg
	}
}

func validateRename(args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%w: %s requires exactly one non-blank argument, got %d", ErrInvalidArguments, TransformRename, len(args))
	}
	return nil
}

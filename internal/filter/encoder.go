package filter

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"

	"github.com/vyrodovalexey/avafields/internal/fields"
)

// DefaultMaxDepth bounds value nesting.
const DefaultMaxDepth = 256

var (
	objectType        = reflect.TypeOf((*fields.Object)(nil))
	numberType        = reflect.TypeOf(json.Number(""))
	marshalerType     = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Encoder writes filtered JSON values to an output stream.
type Encoder struct {
	w        io.Writer
	root     *fields.Fields
	metrics  *Metrics
	maxDepth int

	buf    *bytes.Buffer
	active *fields.Fields
	depth  int
}

// Option is a functional option for configuring the encoder.
type Option func(*Encoder)

// WithMetrics sets the metrics the encoder records to. nil disables recording.
func WithMetrics(m *Metrics) Option {
	return func(e *Encoder) {
		e.metrics = m
	}
}

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) Option {
	return func(e *Encoder) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// NewEncoder returns an encoder writing to w under selection f. A nil f
// selects everything.
func NewEncoder(w io.Writer, f *fields.Fields, opts ...Option) *Encoder {
	if f == nil {
		f = fields.All
	}
	e := &Encoder{
		w:        w,
		root:     f,
		metrics:  GetMetrics(),
		maxDepth: DefaultMaxDepth,
		buf:      &bytes.Buffer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode writes the filtered JSON encoding of v followed by a newline.
// Nothing is written when encoding fails.
func (e *Encoder) Encode(v interface{}) error {
	e.buf.Reset()
	e.active = e.root
	e.depth = 0

	err := e.encode(reflect.ValueOf(v))
	e.metrics.recordEncode(err)
	if err != nil {
		return err
	}

	e.buf.WriteByte('\n')
	_, err = e.w.Write(e.buf.Bytes())
	return err
}

// Marshal returns the filtered JSON encoding of v.
func Marshal(v interface{}, f *fields.Fields, opts ...Option) ([]byte, error) {
	var out bytes.Buffer
	if err := NewEncoder(&out, f, opts...).Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(out.Bytes(), "\n"), nil
}

func (e *Encoder) encode(v reflect.Value) error {
	if !v.IsValid() {
		e.buf.WriteString("null")
		return nil
	}

	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.maxDepth {
		return fmt.Errorf("%w: %d", ErrMaxDepth, e.maxDepth)
	}

	t := v.Type()
	switch {
	case t == objectType:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.encodeObject(v.Interface().(*fields.Object))
	case t == numberType:
		return e.encodeNumber(json.Number(v.String()))
	case t == objectType.Elem():
		obj := v.Interface().(fields.Object)
		return e.encodeObject(&obj)
	case t.Implements(marshalerType):
		return e.encodeMarshaler(v)
	case t.Kind() != reflect.Pointer && v.CanAddr() && reflect.PointerTo(t).Implements(marshalerType):
		return e.encodeMarshaler(v.Addr())
	case t.Implements(textMarshalerType):
		return e.encodeTextMarshaler(v)
	case t.Kind() != reflect.Pointer && v.CanAddr() && reflect.PointerTo(t).Implements(textMarshalerType):
		return e.encodeTextMarshaler(v.Addr())
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.encode(v.Elem())
	case reflect.Struct:
		return e.encodeStruct(v)
	case reflect.Map:
		return e.encodeMap(v)
	case reflect.Slice:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return e.encodeScalar(v)
		}
		return e.encodeArray(v)
	case reflect.Array:
		return e.encodeArray(v)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return e.encodeScalar(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func (e *Encoder) encodeScalar(v reflect.Value) error {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return err
	}
	e.buf.Write(data)
	return nil
}

func (e *Encoder) encodeNumber(n json.Number) error {
	if n == "" {
		e.buf.WriteByte('0')
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	e.buf.Write(data)
	return nil
}

// encodeMarshaler writes the output of a custom marshaler as is. Selection
// does not reach inside values that encode themselves.
func (e *Encoder) encodeMarshaler(v reflect.Value) error {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		e.buf.WriteString("null")
		return nil
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return err
	}
	e.buf.Write(data)
	return nil
}

func (e *Encoder) encodeTextMarshaler(v reflect.Value) error {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		e.buf.WriteString("null")
		return nil
	}
	text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return err
	}
	data, err := json.Marshal(string(text))
	if err != nil {
		return err
	}
	e.buf.Write(data)
	return nil
}

func (e *Encoder) encodeArray(v reflect.Value) error {
	e.buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		// elements share the selection of the member holding the array
		if err := e.encode(v.Index(i)); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *Encoder) encodeObject(obj *fields.Object) error {
	w := memberWriter{e: e}
	e.buf.WriteByte('{')
	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		if err := w.member(key, reflect.ValueOf(value)); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *Encoder) encodeMap(v reflect.Value) error {
	if v.IsNil() {
		e.buf.WriteString("null")
		return nil
	}

	type entry struct {
		key   string
		value reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, value: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	w := memberWriter{e: e}
	e.buf.WriteByte('{')
	for _, en := range entries {
		if err := w.member(en.key, en.value); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", nil
		}
		text, err := tm.MarshalText()
		return string(text), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedKey, k.Type())
}

func (e *Encoder) encodeStruct(v reflect.Value) error {
	w := memberWriter{e: e}
	e.buf.WriteByte('{')
	for _, sf := range cachedFields(v.Type()) {
		fv, ok := fieldByIndex(v, sf.index)
		if !ok {
			continue
		}
		if sf.omitEmpty && isEmptyValue(fv) {
			continue
		}
		if err := w.member(sf.name, fv); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// memberWriter writes the members of one object, tracking separators. When
// the node renames members, output names are tracked and the first member
// written under a name wins; later duplicates are omitted.
type memberWriter struct {
	e       *Encoder
	written bool
	names   map[string]struct{}
}

func (w *memberWriter) member(name string, value reflect.Value) error {
	e := w.e
	parent := e.active
	if !parent.Test(name) {
		e.metrics.recordDecision(decisionOmitted)
		return nil
	}

	if w.names == nil && parent.HasTransformations() {
		w.names = make(map[string]struct{})
	}

	e.active = parent.Children(name)
	defer func() { e.active = parent }()

	transformations := parent.Transformations(name)
	if len(transformations) == 0 {
		if !w.claim(name) {
			e.metrics.recordDecision(decisionOmitted)
			return nil
		}
		w.key(name)
		e.metrics.recordDecision(decisionWritten)
		return e.encode(value)
	}

	fv, err := e.transform(name, value, transformations)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fv.Value)
	if err != nil {
		return fmt.Errorf("%w: field %q: %w", ErrTransformFailed, name, err)
	}
	if !w.claim(fv.Name) {
		e.metrics.recordDecision(decisionOmitted)
		return nil
	}
	w.key(fv.Name)
	e.buf.Write(data)
	e.metrics.recordDecision(decisionTransformed)
	return nil
}

// claim reserves an output name, reporting false if it was already written.
func (w *memberWriter) claim(name string) bool {
	if w.names == nil {
		return true
	}
	if _, dup := w.names[name]; dup {
		return false
	}
	w.names[name] = struct{}{}
	return true
}

func (w *memberWriter) key(name string) {
	if w.written {
		w.e.buf.WriteByte(',')
	}
	w.written = true
	key, _ := json.Marshal(name)
	w.e.buf.Write(key)
	w.e.buf.WriteByte(':')
}

// transform renders value under the active node into a scratch buffer,
// decodes it into an ordered intermediate value and applies the member's
// transformations to it.
func (e *Encoder) transform(
	name string,
	value reflect.Value,
	transformations []fields.Transformation,
) (*fields.FieldValue, error) {
	out := e.buf
	var scratch bytes.Buffer
	e.buf = &scratch
	defer func() { e.buf = out }()

	if err := e.encode(value); err != nil {
		return nil, err
	}

	decoded, err := fields.DecodeValue(scratch.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrTransformFailed, name, err)
	}

	fv := &fields.FieldValue{Name: name, Value: decoded}
	fields.ApplyTransformations(fv, transformations)
	return fv, nil
}

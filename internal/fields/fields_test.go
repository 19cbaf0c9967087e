package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllAndNone(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "id", "*", ":simple", "a.b"} {
		assert.True(t, All.Test(name), "All must select %q", name)
		assert.False(t, None.Test(name), "None must reject %q", name)
	}
	assert.Same(t, All, All.Children("x"))
	assert.Same(t, None, None.Children("x"))
	assert.Nil(t, None.Transformations("x"))
}

func TestNewFields(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b"}
	children := map[string]*Fields{"a": All, "skip": nil}
	transformations := map[string][]Transformation{
		"b":     {{Name: TransformSize}},
		"empty": {},
	}

	f := NewFields(false, names, children, transformations)

	names[0] = "changed"
	transformations["b"][0].Name = "changed"

	assert.True(t, f.Test("a"))
	assert.False(t, f.Test("changed"))
	assert.Equal(t, []string{"a"}, f.ChildNames())
	assert.Equal(t, []string{"b"}, f.TransformedNames())
	assert.Equal(t, TransformSize, f.Transformations("b")[0].Name)
}

func TestFields_ExclusionNode(t *testing.T) {
	t.Parallel()

	f := NewFields(true, []string{"password"}, nil, nil)

	assert.True(t, f.IncludesAll())
	assert.True(t, f.Test("id"))
	assert.False(t, f.Test("password"))
	assert.Equal(t, []string{"password"}, f.Names())
}

func TestFields_TransformationsSliceIsClipped(t *testing.T) {
	t.Parallel()

	f := mustParse(t, "a~size~isEmpty")
	list := f.Transformations("a")
	_ = append(list, Transformation{Name: "extra"})

	assert.Len(t, f.Transformations("a"), 2)
}

func TestFields_Equal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{name: "same input", a: "id,name", b: "id,name", equal: true},
		{name: "order does not matter", a: "name,id", b: "id,name", equal: true},
		{name: "different names", a: "id", b: "name", equal: false},
		{name: "different children", a: "a[b]", b: "a[c]", equal: false},
		{name: "different transformations", a: "a~size", b: "a~isEmpty", equal: false},
		{name: "different arguments", a: "a~pluck(x)", b: "a~pluck(y)", equal: false},
		{name: "wildcard vs names", a: "*", b: "id", equal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.equal, mustParse(t, tt.a).Equal(mustParse(t, tt.b)))
		})
	}

	var nilFields *Fields
	assert.False(t, All.Equal(nilFields))
	assert.True(t, nilFields.Equal(nil))
}

func TestFields_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "name,id,group[code]", want: "group[code],id,name"},
		{input: "*,!password", want: "*,!password"},
		{input: "a~rename(z)~isNotEmpty", want: "a~isNotEmpty~rename(z)"},
		{input: "*,group[code],a~size", want: "*,group[code],a~size"},
		{input: "a[!b]", want: "a[*,!b]"},
		{input: "list~keyBy(uid;code)", want: "list~keyBy(uid;code)"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			f := mustParse(t, tt.input)
			assert.Equal(t, tt.want, f.String())

			reparsed := mustParse(t, f.String())
			assert.True(t, f.Equal(reparsed), "String output must parse back to the same tree")
		})
	}
}

func TestFields_MarshalJSON(t *testing.T) {
	t.Parallel()

	f := mustParse(t, "a[b],c~pluck(code)")

	data, err := json.Marshal(f)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"includesAll": false,
		"fields": ["a", "c"],
		"children": {"a": {"includesAll": false, "fields": ["b"]}},
		"transformations": {"c": [{"name": "pluck", "arguments": ["code"]}]}
	}`, string(data))
}

func TestFields_ConcurrentReads(t *testing.T) {
	t.Parallel()

	f := mustParse(t, "*,!secret,group[code,users~size]")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = f.Test("secret")
				_ = f.Children("group").Transformations("users")
				_ = f.String()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.False(t, f.Test("secret"))
}

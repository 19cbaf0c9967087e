package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/schema"
)

const testDataset = `
dataElements:
  - id: de1
    name: ANC 1st visit
    valueType: NUMBER
    zeroIsSignificant: false
    created: 2024-01-02T10:00:00Z
    categoryCombo: &cc
      id: cc1
      name: default
    aggregationLevels: [1, 2, 3]
  - id: de2
    name: ANC 2nd visit
    valueType: NUMBER
    categoryCombo: *cc
    weight: 1.5
    comment: null
dataSets: []
indicators:
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	s, err := LoadFromReader(strings.NewReader(testDataset))
	require.NoError(t, err)

	assert.Equal(t, []string{"dataElements", "dataSets", "indicators"}, s.Resources())
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("dataSets"))
	assert.False(t, s.Has("users"))

	list, err := s.List("dataElements")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t,
		[]string{"id", "name", "valueType", "zeroIsSignificant", "created", "categoryCombo", "aggregationLevels"},
		list[0].Keys())

	empty, err := s.List("dataSets")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadFromReader_ScalarTypes(t *testing.T) {
	t.Parallel()

	s, err := LoadFromReader(strings.NewReader(testDataset))
	require.NoError(t, err)

	de1, err := s.Get("dataElements", "de1")
	require.NoError(t, err)

	out, err := json.Marshal(de1)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "de1",
		"name": "ANC 1st visit",
		"valueType": "NUMBER",
		"zeroIsSignificant": false,
		"created": "2024-01-02T10:00:00Z",
		"categoryCombo": {"id": "cc1", "name": "default"},
		"aggregationLevels": [1, 2, 3]
	}`, string(out))

	de2, err := s.Get("dataElements", "de2")
	require.NoError(t, err)
	cc, ok := de2.Get("categoryCombo")
	require.True(t, ok)
	ccObj, ok := cc.(*fields.Object)
	require.True(t, ok)
	name, _ := ccObj.Get("name")
	assert.Equal(t, "default", name)

	weight, _ := de2.Get("weight")
	assert.Equal(t, 1.5, weight)
	comment, ok := de2.Get("comment")
	assert.True(t, ok)
	assert.Nil(t, comment)
}

func TestStore_NotFound(t *testing.T) {
	t.Parallel()

	s, err := LoadFromReader(strings.NewReader(testDataset))
	require.NoError(t, err)

	_, err = s.List("users")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = s.Get("users", "u1")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = s.Get("dataElements", "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "top level list", input: "- a\n- b\n", message: "top level must be a mapping"},
		{name: "resource not a list", input: "dataElements: {id: x}\n", message: "must be a list"},
		{name: "item not a mapping", input: "dataElements:\n  - x\n", message: "items must be mappings"},
		{name: "missing id", input: "dataElements:\n  - name: a\n", message: "missing id"},
		{name: "numeric id", input: "dataElements:\n  - id: 42\n", message: "non-empty string"},
		{name: "duplicate id", input: "dataElements:\n  - id: a\n  - id: a\n", message: "duplicate id"},
		{name: "duplicate key", input: "dataElements:\n  - id: a\n    id: b\n", message: "duplicate key"},
		{name: "malformed yaml", input: "dataElements: [\n", message: "invalid dataset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadFromReader(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDataset)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadFromReader_CollectsIDProblems(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
dataElements:
  - name: no id
  - id: a
  - id: a
dataSets:
  - id: ""
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataElements[0]: missing id")
	assert.Contains(t, err.Error(), `dataElements[2]: duplicate id "a"`)
	assert.Contains(t, err.Error(), "dataSets[0]")
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()

	s, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Resources())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDataset), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStore_Validate(t *testing.T) {
	t.Parallel()

	registry, err := schema.NewRegistry(
		schema.New("dataElement", "dataElements",
			schema.Property{Name: "id"},
			schema.Property{Name: "name"},
			schema.Property{Name: "valueType"},
		),
	)
	require.NoError(t, err)

	s, err := LoadFromReader(strings.NewReader(`
dataElements:
  - id: a
    name: A
    colour: red
  - id: b
    colour: blue
    style: bold
orphans:
  - id: x
`))
	require.NoError(t, err)

	err = s.Validate(registry)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `property "colour" is not declared`)
	assert.Contains(t, msg, `property "style" is not declared`)
	assert.Contains(t, msg, "orphans: no schema")
	assert.Equal(t, 1, strings.Count(msg, `"colour"`))

	ok, err := LoadFromReader(strings.NewReader("dataElements:\n  - id: a\n    name: A\n"))
	require.NoError(t, err)
	assert.NoError(t, ok.Validate(registry))
}

func TestNew(t *testing.T) {
	t.Parallel()

	obj := fields.NewObject()
	obj.Set("id", "x")

	s, err := New(map[string][]*fields.Object{"things": {obj}})
	require.NoError(t, err)
	got, err := s.Get("things", "x")
	require.NoError(t, err)
	assert.Same(t, obj, got)

	_, err = New(map[string][]*fields.Object{"things": {nil}})
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

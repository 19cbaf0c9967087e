package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/schema"
)

const testSchemas = `
schemas:
  - name: dataElement
    plural: dataElements
    properties:
      - name: id
      - name: name
      - name: code
      - name: categoryCombo
        kind: reference
        type: categoryCombo
  - name: categoryCombo
    plural: categoryCombos
    properties:
      - name: id
      - name: name
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeSchemas(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSchemas), 0o600))
	return path
}

func TestParseCmd(t *testing.T) {
	t.Parallel()

	schemas := writeSchemas(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "string output",
			args: []string{"parse", "-o", "string", "id,name"},
			want: mustString(t, "id,name"),
		},
		{
			name: "schema aware preset",
			args: []string{"parse", "--schemas", schemas, "--schema", "dataElement", "-o", "string", ":identifiable"},
			want: mustString(t, "id,name,code"),
		},
		{
			name: "schema by plural with bare reference",
			args: []string{"parse", "--schemas", schemas, "--schema", "dataElements", "-o", "string", "name,categoryCombo"},
			want: mustString(t, "name,categoryCombo[id]"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func mustString(t *testing.T, input string) string {
	t.Helper()

	f, err := fields.Parse(input)
	require.NoError(t, err)
	return f.String()
}

func TestParseCmd_JSON(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "parse", "a,b[c]")
	require.NoError(t, err)
	assert.JSONEq(t, `{"includesAll":false,"fields":["a","b"],"children":{"b":{"includesAll":false,"fields":["c"]}}}`, out)
}

func TestParseCmd_Errors(t *testing.T) {
	t.Parallel()

	schemas := writeSchemas(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "syntax", args: []string{"parse", "a]"}, wantErr: fields.ErrSyntax},
		{name: "validation", args: []string{"parse", "a~nope"}, wantErr: fields.ErrValidation},
		{name: "too long", args: []string{"parse", "--max-length", "3", "abcd"}, wantErr: fields.ErrSyntax},
		{name: "unknown schema", args: []string{"parse", "--schemas", schemas, "--schema", "indicator", "id"}, wantErr: schema.ErrSchemaNotFound},
		{name: "schema without registry", args: []string{"parse", "--schema", "dataElement", "id"}, wantErr: errSchemaWithoutRegistry},
		{name: "unknown format", args: []string{"parse", "-o", "yaml", "id"}, wantMsg: "unknown format"},
		{name: "missing argument", args: []string{"parse"}, wantMsg: "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestFilterCmd(t *testing.T) {
	t.Parallel()

	const doc = `[
		{"id":"de1","name":"ANC","code":"A1","categoryCombo":{"id":"cc1","name":"default"}},
		{"id":"de2","name":"Births","code":"B1"}
	]`

	t.Run("stdin", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, doc, "filter", "id,categoryCombo[name]")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"de1","categoryCombo":{"name":"default"}},{"id":"de2"}]`, out)
	})

	t.Run("file and transformation", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "doc.json")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		out, err := execute(t, "", "filter", "--indent", "name~rename(label)", path)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"label":"ANC"},{"label":"Births"}]`, out)
		assert.Contains(t, out, "\n  ")
	})

	t.Run("member order is preserved", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, `{"z":1,"a":2,"m":3}`, "filter", "*")
		require.NoError(t, err)
		assert.Equal(t, `{"z":1,"a":2,"m":3}`+"\n", out)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, `{"a":`, "filter", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON input")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "", "filter", "a", filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestTokensCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "tokens", "a[b]")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `NAME("a")@0`, lines[0])
	assert.Equal(t, `BRACKET_OPEN("[")@1`, lines[1])
	assert.Equal(t, `BRACKET_CLOSE("]")@3`, lines[3])
}

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", input: "d: 30s", want: 30 * time.Second},
		{name: "compound", input: "d: 1h30m", want: 90 * time.Minute},
		{name: "empty string", input: `d: ""`, want: 0},
		{name: "invalid", input: "d: later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var v struct {
				D Duration `yaml:"d"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.D.Duration())
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var v struct {
		D Duration `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"250ms"}`), &v))
	assert.Equal(t, 250*time.Millisecond, v.D.Duration())

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &v))
	assert.Equal(t, time.Duration(0), v.D.Duration())

	out, err := json.Marshal(struct {
		D Duration `json:"d"`
	}{D: Duration(5 * time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"5s"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"d":"5 parsecs"}`), &v))
}

func TestDuration_MarshalYAML(t *testing.T) {
	t.Parallel()

	out, err := yaml.Marshal(map[string]Duration{"d": Duration(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "d: 2m0s\n", string(out))
}

package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueYAMLRoundTrip(t *testing.T) {
	m := NewMap()
	m.Set("b", Uint(2))
	m.Set("a", Text("x"))

	tests := []struct {
		name string
		v    Value
	}{
		{"text", Text("hello")},
		{"bool", Bool(true)},
		{"uint", Uint(42)},
		{"int", Int(-7)},
		{"float", Float(3.5)},
		{"null", Null()},
		{"array", Array([]Value{Text("a"), Uint(1)})},
		{"object", Object(m)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := yaml.Marshal(tt.v)
			require.NoError(t, err)

			var got Value
			require.NoError(t, yaml.Unmarshal(data, &got))
			assert.True(t, Equal(tt.v, got), "round-trip mismatch for %s", tt.name)
		})
	}
}

func TestValueYAMLObjectPreservesOrder(t *testing.T) {
	var v Value
	require.NoError(t, yaml.Unmarshal([]byte("z: 1\na: 2\nm: 3\n"), &v))
	obj, err := v.TryObject()
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())
}

func TestMapYAMLDirectField(t *testing.T) {
	type holder struct {
		Params *Map `yaml:"params"`
	}
	var h holder
	require.NoError(t, yaml.Unmarshal([]byte("params:\n  host: example.com\n  port: 8080\n"), &h))
	require.NotNil(t, h.Params)
	port, ok := h.Params.Get("port")
	require.True(t, ok)
	n, err := port.TryInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(8080), n)

	out, err := yaml.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(out), "host: example.com")
}

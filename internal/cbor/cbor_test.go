package cbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int    `cbor:"x"`
	Y int    `cbor:"y"`
	N string `cbor:"n"`
}

func TestDeterministic(t *testing.T) {
	a, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	b, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, Valid(a))
	assert.False(t, Valid(a[:len(a)-1]))
}

func TestRoundTrip(t *testing.T) {
	data, err := Marshal(point{X: 1, Y: -2, N: "p"})
	require.NoError(t, err)

	var out point
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, point{X: 1, Y: -2, N: "p"}, out)

	var generic any
	require.NoError(t, Unmarshal(data, &generic))
	m, ok := generic.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p", m["n"])
}

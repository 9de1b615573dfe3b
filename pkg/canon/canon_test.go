package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeysRecursively(t *testing.T) {
	a := map[string]any{
		"b": 1,
		"a": map[string]any{"z": 1, "y": 2},
	}
	b := map[string]any{
		"a": map[string]any{"y": 2, "z": 1},
		"b": 1,
	}

	outA, err := Marshal(a)
	require.NoError(t, err)
	outB, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, string(outA), string(outB))
	assert.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(outA))
}

func TestMarshal_PreservesArrayOrder(t *testing.T) {
	out, err := Marshal(map[string]any{"items": []any{3, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[3,1,2]}`, string(out))
}

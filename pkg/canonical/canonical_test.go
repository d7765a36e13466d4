package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsObjectKeys(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "c": 3}
	b := map[string]interface{}{"c": 3, "a": 1, "b": 2}

	outA, err := Marshal(a)
	require.NoError(t, err)
	outB, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, outA, outB)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(outA))
}

func TestMarshal_PreservesArrayOrder(t *testing.T) {
	out, err := Marshal([]interface{}{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, `[3,1,2]`, string(out))
}

func TestMarshal_Null(t *testing.T) {
	out, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestMarshal_Nested(t *testing.T) {
	v := map[string]interface{}{
		"outer": map[string]interface{}{"z": nil, "a": []interface{}{"x", true}},
		"n":     42,
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"n":42,"outer":{"a":["x",true],"z":null}}`, string(out))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	out, err := Marshal(map[string]interface{}{"msg": "a<b&c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"a<b&c>d"}`, string(out))
}

func TestMarshal_RejectsUnserializable(t *testing.T) {
	_, err := Marshal(map[string]interface{}{"fn": func() {}})
	assert.Error(t, err)
}

func TestMarshal_StructsReduceToMaps(t *testing.T) {
	type payload struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	out, err := Marshal(payload{B: "x", A: 7})
	require.NoError(t, err)
	assert.Equal(t, `{"a":7,"b":"x"}`, string(out))
}

func TestHashHex_DeterministicAcrossKeyOrder(t *testing.T) {
	h1, err := HashHex(map[string]interface{}{"a": 1, "b": "two"})
	require.NoError(t, err)
	h2, err := HashHex(map[string]interface{}{"b": "two", "a": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

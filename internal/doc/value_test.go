package doc

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// U+FB01 sorts before U+1F600 in UTF-8 but after it in UTF-16, because
	// the emoji encodes as the surrogate pair D83D DE00.
	obj := Object{
		"\U0001F600": Int(1),
		"\ufb01":     Int(2),
	}

	assert.Equal(t, []string{"\U0001F600", "\ufb01"}, obj.SortedKeys())
}

func TestObjectClone_Independent(t *testing.T) {
	orig := Object{"qty": Int(1)}
	c := orig.Clone()
	c["qty"] = Int(2)

	assert.Equal(t, Int(1), orig["qty"])
	assert.Nil(t, Object(nil).Clone())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("a"), String("a"), true},
		{"different string", String("a"), String("b"), false},
		{"int vs string", Int(1), String("1"), false},
		{"null", Null{}, Null{}, true},
		{"arrays", Array{Int(1), String("x")}, Array{Int(1), String("x")}, true},
		{"array length", Array{Int(1)}, Array{Int(1), Int(2)}, false},
		{"objects", Object{"a": Bool(true)}, Object{"a": Bool(true)}, true},
		{"object value", Object{"a": Bool(true)}, Object{"a": Bool(false)}, false},
		{"object key", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs null", nil, Null{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"name":   "pipette tips",
		"qty":    10,
		"active": true,
		"tags":   []any{"consumable", int64(3)},
		"none":   nil,
		"big":    uint64(math.MaxInt64),
	})
	require.NoError(t, err)

	assert.Equal(t, Object{
		"name":   String("pipette tips"),
		"qty":    Int(10),
		"active": Bool(true),
		"tags":   Array{String("consumable"), Int(3)},
		"none":   Null{},
		"big":    Int(math.MaxInt64),
	}, v)
}

func TestFromAny_RejectsFloats(t *testing.T) {
	for _, f := range []any{2.5, float64(4), float32(1)} {
		_, err := FromAny(map[string]any{"qty": f})
		require.Error(t, err, "%v", f)
		assert.Contains(t, err.Error(), "floats are forbidden")
	}
}

func TestFromAny_RejectsUint64AboveInt64(t *testing.T) {
	_, err := FromAny(uint64(math.MaxInt64) + 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of int64 range")
}

func TestFromAny_YAMLNumbers(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    Value
		wantErr string
	}{
		{"int", "qty: 5", Int(5), ""},
		{"max int64", "qty: 9223372036854775807", Int(math.MaxInt64), ""},
		{"max uint64", "qty: 18446744073709551615", nil, "out of int64 range"},
		{"integral float", "qty: 5.0", nil, "floats are forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]any
			require.NoError(t, yaml.Unmarshal([]byte(tt.src), &m))

			obj, err := ObjectFromAny(m)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj["qty"])
		})
	}
}

func TestFromAny_RejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}

func TestToAny_RoundTrip(t *testing.T) {
	in := map[string]any{
		"name": "centrifuge",
		"qty":  int64(2),
		"ok":   false,
		"list": []any{"a", int64(1)},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToAny(v))
}

func TestObjectUnmarshalJSON(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"qty":10,"name":"tips","ok":true,"gone":null,"tags":["a",1]}`), &obj)
	require.NoError(t, err)

	assert.Equal(t, Int(10), obj["qty"])
	assert.Equal(t, String("tips"), obj["name"])
	assert.Equal(t, Bool(true), obj["ok"])
	assert.Equal(t, Null{}, obj["gone"])
	assert.Equal(t, Array{String("a"), Int(1)}, obj["tags"])
}

func TestObjectUnmarshalJSON_LargeInt(t *testing.T) {
	var obj Object
	require.NoError(t, json.Unmarshal([]byte(`{"n":9007199254740993}`), &obj))
	assert.Equal(t, Int(9007199254740993), obj["n"])
}

func TestObjectUnmarshalJSON_RejectsFloat(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"qty":1.5}`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestObjectMarshalJSON_SortedKeys(t *testing.T) {
	data, err := json.Marshal(Object{"b": Int(2), "a": String("x"), "c": Null{}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":null}`, string(data))
}

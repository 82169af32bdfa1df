package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/httprpc/param"
	"github.com/mnehpets/httprpc/rpcerr"
)

func decoded(t *testing.T, query string) param.Values {
	t.Helper()
	pairs, err := param.ParseQuery(query)
	require.NoError(t, err)
	values, err := param.Decode(pairs)
	require.NoError(t, err)
	return values
}

func coerceQuery(t *testing.T, query string, s Shape) (any, error) {
	t.Helper()
	v, ok := decoded(t, query).Lookup("a")
	return coerce("a", s, v, ok)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		query string
		shape Shape
		want  any
	}{
		{"string", "a=hello", String, "hello"},
		{"empty string", "a=", String, ""},
		{"int", "a=-42", Int, int64(-42)},
		{"float", "a=2.5", Float, 2.5},
		{"float exponent", "a=1e3", Float, 1000.0},
		{"bool true", "a=true", Bool, true},
		{"bool false", "a=false", Bool, false},
		{"missing scalar is null", "b=1", Int, nil},
		{"list", "a=1&a=2&a=3", List(Int), []any{int64(1), int64(2), int64(3)}},
		{"scalar promoted to list", "a=5", List(Int), []any{int64(5)}},
		{"missing list is empty", "b=1", List(String), []any{}},
		{"missing required list is empty", "", List(String).Required(), []any{}},
		{"map", "a=x:1&a=y:2", Map(Int), map[string]any{"x": int64(1), "y": int64(2)}},
		{"map last write wins", "a=x:1&a=x:2", Map(Int), map[string]any{"x": int64(2)}},
		{"missing map is empty", "", Map(String), map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceQuery(t, tt.query, tt.shape)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		shape Shape
	}{
		{"list for scalar", "a=1&a=2", Int},
		{"map for scalar", "a=x:1", String},
		{"not an integer", "a=abc", Int},
		{"fraction for integer", "a=1.5", Int},
		{"integer overflow", "a=99999999999999999999", Int},
		{"narrow integer overflow", "a=300", Shape{kind: KindInt, bits: 8}},
		{"float overflow", "a=1e400", Float},
		{"narrow float overflow", "a=1e39", Shape{kind: KindFloat, bits: 32}},
		{"nan", "a=NaN", Float},
		{"infinity", "a=Inf", Float},
		{"hex float", "a=0x1p-2", Float},
		{"not a number", "a=1.2.3", Float},
		{"bool word", "a=yes", Bool},
		{"bool case", "a=TRUE", Bool},
		{"missing required", "b=1", Int.Required()},
		{"map for list", "a=x:1", List(String)},
		{"bad list element", "a=1&a=two", List(Int)},
		{"text for map", "a=1", Map(String)},
		{"list for map", "a=1&a=2", Map(String)},
		{"bad map element", "a=x:one", Map(Int)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coerceQuery(t, tt.query, tt.shape)
			require.Error(t, err)
			assert.ErrorIs(t, err, rpcerr.ErrCoercion)
		})
	}
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "int", Int.String())
	assert.Equal(t, "required bool", Bool.Required().String())
	assert.Equal(t, "list<string>", List(String).String())
	assert.Equal(t, "map<float>", Map(Float).String())
	assert.Equal(t, "void", Void.String())
	assert.Panics(t, func() { List(List(String)) })
}

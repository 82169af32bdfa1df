package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/httprpc/rpcerr"
	"github.com/mnehpets/httprpc/value"
)

func encodeCBOR(t *testing.T, v value.Value) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewCBOREncoder().Encode(&buf, v))
	return buf.Bytes()
}

func TestCBOREncoder_Bytes(t *testing.T) {
	tests := []struct {
		name string
		in   value.Value
		want []byte
	}{
		{"null", value.Null(), []byte{0xf6}},
		{"true", value.Bool(true), []byte{0xf5}},
		{"small int", value.Int(1), []byte{0x01}},
		{"negative int", value.Int(-1), []byte{0x20}},
		{"string", value.String("a"), []byte{0x61, 'a'}},
		{"indefinite array", value.Values(value.Int(1), value.String("a")), []byte{0x9f, 0x01, 0x61, 'a', 0xff}},
		{"indefinite map", value.Entries(value.Entry{Key: "k", Value: value.Bool(true)}), []byte{0xbf, 0x61, 'k', 0xf5, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeCBOR(t, tt.in))
		})
	}
}

func TestCBOREncoder_RoundTrip(t *testing.T) {
	data := encodeCBOR(t, fixture(t))

	var got map[string]any
	require.NoError(t, cbor.Unmarshal(data, &got))
	assert.Equal(t, uint64(3), got["count"])
	assert.Equal(t, "widget", got["name"])
	assert.Equal(t, 0.5, got["ratio"])
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	assert.Empty(t, got["empty"])
}

func TestCBOREncoder_Lifecycle(t *testing.T) {
	s, closes := counted(3)
	encodeCBOR(t, s)
	assert.Equal(t, 1, *closes)

	failing := value.Values(value.Int(1)).WithCloser(func() error { return errors.New("release failed") })
	err := NewCBOREncoder().Encode(&bytes.Buffer{}, failing)
	assert.ErrorIs(t, err, rpcerr.ErrResource)
}

func TestCBOREncoder_ClosesPulledValueWhenSinkFails(t *testing.T) {
	inner, closes := counted(3)
	m := value.Entries(value.Entry{Key: strings.Repeat("k", 5000), Value: inner})
	err := NewCBOREncoder().Encode(failingWriter{}, m)
	assert.ErrorIs(t, err, errSink)
	assert.Equal(t, 1, *closes)
}

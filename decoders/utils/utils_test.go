package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadU16(t *testing.T) {
	b := []byte{0x00, 0x09, 0x01}
	v, ok := ReadU16(b, 0)
	require.True(t, ok)
	assert.Equal(t, uint16(9), v)

	_, ok = ReadU16(b, 2)
	assert.False(t, ok)
	_, ok = ReadU16(b, -1)
	assert.False(t, ok)
}

func TestReadU32(t *testing.T) {
	v, ok := ReadU32([]byte{1, 2, 3, 4}, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1020304), v)

	_, ok = ReadU32([]byte{1, 2, 3}, 0)
	assert.False(t, ok)
}

func TestUint(t *testing.T) {
	assert.Equal(t, uint64(6), Uint([]byte{6}))
	assert.Equal(t, uint64(80), Uint([]byte{0, 0x50}))
	assert.Equal(t, uint64(0x0a000001), Uint([]byte{10, 0, 0, 1}))
	assert.Equal(t, uint64(1690000000123), Uint([]byte{0, 0, 0x01, 0x89, 0x7b, 0xd9, 0x84, 0x7b}))
}

func TestWriteUint(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, WriteUint(buf, 1, 6))
	require.NoError(t, WriteUint(buf, 2, 80))
	require.NoError(t, WriteUint(buf, 4, 1))
	require.NoError(t, WriteUint(buf, 8, 2))
	assert.Equal(t, []byte{6, 0, 0x50, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2}, buf.Bytes())

	assert.Error(t, WriteUint(buf, 3, 1))
}

func TestFormattingTypes(t *testing.T) {
	out, err := json.Marshal(map[string]any{
		"ip":  IPAddress{192, 168, 0, 1},
		"mac": MacAddress{0, 1, 2, 3, 4, 5},
		"raw": HexBytes{0xde, 0xad},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ip":"192.168.0.1","mac":"00:01:02:03:04:05","raw":"dead"}`, string(out))

	assert.Equal(t, "0102", IPAddress{1, 2}.String())
}

package binutil

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNormalize(t *testing.T) {
	in := []byte{0xA, 0xB, 0xC, 0xD}
	tests := map[Layout][]byte{
		ABCD: {0xA, 0xB, 0xC, 0xD},
		BADC: {0xB, 0xA, 0xD, 0xC},
		CDAB: {0xC, 0xD, 0xA, 0xB},
		DCBA: {0xD, 0xC, 0xB, 0xA},
	}
	for l, want := range tests {
		got := Normalize(in, l)
		assert.Equal(t, want, got, l.String())
		assert.Equal(t, in, Normalize(got, l), "%s is not self inverse", l)
	}
	assert.Equal(t, []byte{0xA, 0xB, 0xC, 0xD}, in)
}

func TestNormalizeEightBytes(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, []byte{7, 8, 5, 6, 3, 4, 1, 2}, Normalize(in, CDAB))
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, Normalize(in, DCBA))
}

func TestParseWrite(t *testing.T) {
	buf := make([]byte, 8)
	WriteUint16(buf, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), ParseUint16(buf))

	WriteUint32(buf, 0xDEADBEEF)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf[:4])
	assert.Equal(t, uint32(0xDEADBEEF), ParseUint32(buf))

	WriteUint64(buf, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), ParseUint64(buf))

	WriteFloat32(buf, 1.5)
	assert.Equal(t, float32(1.5), ParseFloat32(buf))

	WriteFloat64(buf, -273.15)
	assert.Equal(t, -273.15, ParseFloat64(buf))
}

func TestBit(t *testing.T) {
	buf := []byte{0x05, 0x80}
	assert.True(t, Bit(buf, 0))
	assert.False(t, Bit(buf, 1))
	assert.True(t, Bit(buf, 2))
	assert.True(t, Bit(buf, 15))
	assert.False(t, Bit(buf, 16))
	assert.False(t, Bit(buf, -1))
}

func TestLayoutJSON(t *testing.T) {
	data, err := json.Marshal(CDAB)
	require.NoError(t, err)
	assert.Equal(t, `"CDAB"`, string(data))

	var l Layout
	require.NoError(t, json.Unmarshal([]byte(`"DCBA"`), &l))
	assert.Equal(t, DCBA, l)
	assert.Error(t, json.Unmarshal([]byte(`"XYZW"`), &l))
}

package binutil

import (
	"encoding/json"
	"fmt"
	"math"
)

// Layout is the order in which a device lays out the bytes of a multi register value.
// Letters name bytes from most to least significant.
type Layout byte

const (
	ABCD Layout = iota // big-endian
	BADC               // big-endian byte swap
	CDAB               // little-endian byte swap
	DCBA               // little-endian
)

var LayoutToString = map[Layout]string{
	ABCD: "ABCD",
	BADC: "BADC",
	CDAB: "CDAB",
	DCBA: "DCBA",
}

var StringToLayout = map[string]Layout{
	"ABCD": ABCD,
	"BADC": BADC,
	"CDAB": CDAB,
	"DCBA": DCBA,
}

func (l Layout) String() string {
	if s, ok := LayoutToString[l]; ok {
		return s
	}
	return fmt.Sprintf("Layout(%d)", l)
}

func (l Layout) MarshalJSON() ([]byte, error) {
	if s, ok := LayoutToString[l]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown memory layout %d", l)
}

func (l *Layout) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	v, ok := StringToLayout[s]
	if !ok {
		return fmt.Errorf("unknown memory layout %s", s)
	}
	*l = v
	return nil
}

// Normalize returns a copy of buf, a sequence of 16 bit words, reordered into ABCD.
// Every layout is its own inverse, so Normalize also turns ABCD into the device order.
func Normalize(buf []byte, l Layout) []byte {
	out := Dup(buf)
	switch l {
	case BADC:
		swapBytes(out)
	case CDAB:
		reverseWords(out)
	case DCBA:
		swapBytes(out)
		reverseWords(out)
	}
	return out
}

func swapBytes(buf []byte) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = buf[i+1], buf[i]
	}
}

func reverseWords(buf []byte) {
	words := len(buf) / 2
	for i, j := 0, words-1; i < j; i, j = i+1, j-1 {
		buf[2*i], buf[2*j] = buf[2*j], buf[2*i]
		buf[2*i+1], buf[2*j+1] = buf[2*j+1], buf[2*i+1]
	}
}

func ParseUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

func ParseUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 |
		uint32(buf[1])<<16 |
		uint32(buf[2])<<8 |
		uint32(buf[3])
}

func ParseUint64(b []byte) uint64 {
	return uint64(ParseUint32(b[0:4]))<<32 | uint64(ParseUint32(b[4:8]))
}

func ParseFloat32(buf []byte) float32 {
	return math.Float32frombits(ParseUint32(buf))
}

func ParseFloat64(buf []byte) float64 {
	return math.Float64frombits(ParseUint64(buf))
}

func WriteUint16(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

func WriteUint32(buf []byte, value uint32) {
	WriteUint16(buf[0:2], uint16(value>>16))
	WriteUint16(buf[2:4], uint16(value))
}

func WriteUint64(buf []byte, value uint64) {
	WriteUint32(buf[0:4], uint32(value>>32))
	WriteUint32(buf[4:8], uint32(value))
}

func WriteFloat32(buf []byte, value float32) {
	WriteUint32(buf, math.Float32bits(value))
}

func WriteFloat64(buf []byte, value float64) {
	WriteUint64(buf, math.Float64bits(value))
}

func Dup(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

// Bit reports bit n of a packed coil or discrete input response, least significant bit first.
func Bit(buf []byte, n int) bool {
	if n < 0 || n/8 >= len(buf) {
		return false
	}
	return buf[n/8]&(1<<(uint(n)%8)) != 0
}

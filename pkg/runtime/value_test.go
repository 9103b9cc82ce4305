package runtime

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"tagscan/pkg/runtime/constant"
	"testing"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		name    string
		dt      constant.DataType
		raw     interface{}
		want    Value
		wantErr bool
	}{
		{name: "nil is null", dt: constant.Double, raw: nil, want: NullValue()},
		{name: "bool", dt: constant.Boolean, raw: true, want: BoolValue(true)},
		{name: "number to bool", dt: constant.Boolean, raw: 2, want: BoolValue(true)},
		{name: "float rounds to int16", dt: constant.Int16, raw: 41.6, want: IntValue(constant.Int16, 42)},
		{name: "int16 overflow", dt: constant.Int16, raw: 40000, wantErr: true},
		{name: "byte is unsigned", dt: constant.Byte, raw: -1, wantErr: true},
		{name: "uint16 to int32", dt: constant.Int32, raw: uint16(65535), want: IntValue(constant.Int32, 65535)},
		{name: "string to double", dt: constant.Double, raw: "52.5", want: DoubleValue(52.5)},
		{name: "float32 keeps kind", dt: constant.Float, raw: float32(1.5), want: FloatValue(constant.Float, 1.5)},
		{name: "any to string", dt: constant.String, raw: 12, want: StringValue("12")},
		{name: "garbage to double", dt: constant.Double, raw: "abc", wantErr: true},
		{name: "int64 max", dt: constant.Int64, raw: int64(math.MaxInt64), want: IntValue(constant.Int64, math.MaxInt64)},
		{name: "int64 min from float", dt: constant.Int64, raw: float64(math.MinInt64), want: IntValue(constant.Int64, math.MinInt64)},
		{name: "2^63 overflows int64", dt: constant.Int64, raw: 9.223372036854775808e18, wantErr: true},
		{name: "uint64 above int64", dt: constant.Int64, raw: uint64(1 << 63), wantErr: true},
		{name: "nan to int32", dt: constant.Int32, raw: math.NaN(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf(tt.dt, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestValueNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Nil(t, v.Interface())
	_, ok := v.Float64()
	assert.False(t, ok)
	assert.True(t, v.Equal(NullValue()))
	assert.False(t, v.Equal(IntValue(constant.Int16, 0)))

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestValueEqualAcrossNumericKinds(t *testing.T) {
	assert.True(t, IntValue(constant.Int16, 5).Equal(DoubleValue(5)))
	assert.False(t, IntValue(constant.Int16, 5).Equal(DoubleValue(5.2)))
	assert.False(t, BoolValue(true).Equal(IntValue(constant.Int16, 1)))
	assert.True(t, StringValue("a").Equal(StringValue("a")))
}

func TestValueConvert(t *testing.T) {
	v, err := DoubleValue(12.7).Convert(constant.Int32)
	require.NoError(t, err)
	assert.Equal(t, constant.Int32, v.Kind())
	assert.Equal(t, int32(13), v.Interface())

	_, err = DoubleValue(1e6).Convert(constant.Int16)
	assert.Error(t, err)

	v, err = IntValue(constant.Int16, 1).Convert(constant.Boolean)
	require.NoError(t, err)
	assert.Equal(t, true, v.Interface())
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(constant.Boolean, "true")
	require.NoError(t, err)
	assert.Equal(t, true, v.Interface())

	v, err = ParseValue(constant.Int64, " 17 ")
	require.NoError(t, err)
	assert.Equal(t, int64(17), v.Interface())

	v, err = ParseValue(constant.Double, "")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = ParseValue(constant.String, " padded ")
	require.NoError(t, err)
	assert.Equal(t, " padded ", v.String())

	_, err = ParseValue(constant.Boolean, "maybe")
	assert.Error(t, err)
}

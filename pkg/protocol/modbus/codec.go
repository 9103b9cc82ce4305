package modbus

import (
	"fmt"
	"math"
	"strings"
	"tagscan/pkg/runtime"
	"tagscan/pkg/runtime/constant"
	"tagscan/pkg/utils/binutil"
)

// decode converts the payload read at a into a value of data type dt. For bit tables
// data holds packed bits starting at a; for registers it holds Quantity(dt) words.
func decode(a *Address, dt constant.DataType, data []byte, layout binutil.Layout) (runtime.Value, error) {
	if a.Table.IsBit() {
		if len(data) == 0 {
			return runtime.Value{}, fmt.Errorf("empty response for %s", a.Table)
		}
		return runtime.ValueOf(dt, binutil.Bit(data, 0))
	}

	want := int(a.Quantity(dt)) * 2
	if len(data) < want {
		return runtime.Value{}, fmt.Errorf("short response: got %d bytes, want %d", len(data), want)
	}
	buf := binutil.Normalize(data[:want], layout)

	switch dt {
	case constant.Boolean:
		word := binutil.ParseUint16(buf)
		if a.Bit >= 0 {
			return runtime.BoolValue(word&(1<<uint(a.Bit)) != 0), nil
		}
		return runtime.BoolValue(word != 0), nil
	case constant.Byte:
		return runtime.IntValue(dt, int64(binutil.ParseUint16(buf)&0xFF)), nil
	case constant.Int16:
		return runtime.IntValue(dt, int64(int16(binutil.ParseUint16(buf)))), nil
	case constant.Int32:
		return runtime.IntValue(dt, int64(int32(binutil.ParseUint32(buf)))), nil
	case constant.Int64:
		return runtime.IntValue(dt, int64(binutil.ParseUint64(buf))), nil
	case constant.Float:
		return runtime.FloatValue(dt, float64(binutil.ParseFloat32(buf))), nil
	case constant.Double:
		return runtime.FloatValue(dt, binutil.ParseFloat64(buf)), nil
	case constant.String:
		return runtime.StringValue(strings.TrimRight(string(buf), "\x00 ")), nil
	}
	return runtime.Value{}, fmt.Errorf("unsupported data type %s", dt)
}

// encode renders v as the register payload written at a, in device layout.
func encode(a *Address, v runtime.Value, layout binutil.Layout) ([]byte, error) {
	dt := v.Kind()
	buf := make([]byte, int(a.Quantity(dt))*2)

	switch dt {
	case constant.Boolean:
		b, _ := v.Bool()
		if b {
			binutil.WriteUint16(buf, 1)
		}
	case constant.Byte, constant.Int16, constant.Int32, constant.Int64:
		f, _ := v.Float64()
		i := int64(f)
		switch dt {
		case constant.Byte, constant.Int16:
			binutil.WriteUint16(buf, uint16(i))
		case constant.Int32:
			binutil.WriteUint32(buf, uint32(i))
		default:
			binutil.WriteUint64(buf, uint64(i))
		}
	case constant.Float:
		f, _ := v.Float64()
		if math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("value %v overflows float", f)
		}
		binutil.WriteFloat32(buf, float32(f))
	case constant.Double:
		f, _ := v.Float64()
		binutil.WriteFloat64(buf, f)
	case constant.String:
		s := v.String()
		if len(s) > len(buf) {
			return nil, fmt.Errorf("string of %d bytes does not fit %d registers", len(s), len(buf)/2)
		}
		copy(buf, s)
	default:
		return nil, fmt.Errorf("unsupported data type %s", dt)
	}
	return binutil.Normalize(buf, layout), nil
}

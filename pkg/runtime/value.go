package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"tagscan/pkg/runtime/constant"
)

// Value is a tag value tagged with its data type. The zero Value is null,
// which stands for "never observed".
type Value struct {
	kind  constant.DataType
	valid bool
	b     bool
	i     int64
	f     float64
	s     string
}

func NullValue() Value {
	return Value{}
}

func BoolValue(b bool) Value {
	return Value{kind: constant.Boolean, valid: true, b: b}
}

// IntValue builds an integer value of kind dt. dt must be an integer data type.
func IntValue(dt constant.DataType, i int64) Value {
	if !dt.IsInteger() {
		dt = constant.Int64
	}
	return Value{kind: dt, valid: true, i: i}
}

func FloatValue(dt constant.DataType, f float64) Value {
	if dt != constant.Float {
		dt = constant.Double
	}
	return Value{kind: dt, valid: true, f: f}
}

func DoubleValue(f float64) Value {
	return FloatValue(constant.Double, f)
}

func StringValue(s string) Value {
	return Value{kind: constant.String, valid: true, s: s}
}

func (v Value) Kind() constant.DataType {
	return v.kind
}

func (v Value) IsNull() bool {
	return !v.valid
}

// Float64 converts numeric values to float64. Null, boolean and string values report false.
func (v Value) Float64() (float64, bool) {
	if !v.valid {
		return 0, false
	}
	switch {
	case v.kind.IsInteger():
		return float64(v.i), true
	case v.kind == constant.Float || v.kind == constant.Double:
		return v.f, true
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	if !v.valid || v.kind != constant.Boolean {
		return false, false
	}
	return v.b, true
}

func (v Value) Interface() interface{} {
	if !v.valid {
		return nil
	}
	switch v.kind {
	case constant.Boolean:
		return v.b
	case constant.Byte:
		return uint8(v.i)
	case constant.Int16:
		return int16(v.i)
	case constant.Int32:
		return int32(v.i)
	case constant.Int64:
		return v.i
	case constant.Float:
		return float32(v.f)
	case constant.Double:
		return v.f
	case constant.String:
		return v.s
	}
	return nil
}

func (v Value) Equal(o Value) bool {
	if v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	if v.kind.IsNumeric() && o.kind.IsNumeric() {
		a, _ := v.Float64()
		b, _ := o.Float64()
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case constant.Boolean:
		return v.b == o.b
	case constant.String:
		return v.s == o.s
	}
	return false
}

// String renders the value the way it is stored in configuration files.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.kind {
	case constant.Boolean:
		return strconv.FormatBool(v.b)
	case constant.Byte, constant.Int16, constant.Int32, constant.Int64:
		return strconv.FormatInt(v.i, 10)
	case constant.Float:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case constant.Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return v.s
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Convert coerces v into data type dt, failing when the value does not fit.
func (v Value) Convert(dt constant.DataType) (Value, error) {
	if !v.valid {
		return v, nil
	}
	if v.kind == dt {
		return v, nil
	}
	return ValueOf(dt, v.Interface())
}

var intRanges = map[constant.DataType][2]float64{
	constant.Byte:  {0, math.MaxUint8},
	constant.Int16: {math.MinInt16, math.MaxInt16},
	constant.Int32: {math.MinInt32, math.MaxInt32},
	constant.Int64: {math.MinInt64, math.MaxInt64},
}

// exactInt returns integer inputs that fit an int64 without going through float64.
func exactInt(raw interface{}) (int64, bool) {
	switch t := raw.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint:
		if uint64(t) <= math.MaxInt64 {
			return int64(t), true
		}
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t), true
		}
	}
	return 0, false
}

// ValueOf converts a driver or API supplied Go value into a Value of data type dt.
func ValueOf(dt constant.DataType, raw interface{}) (Value, error) {
	if raw == nil {
		return NullValue(), nil
	}
	if s, ok := raw.(string); ok {
		return ParseValue(dt, s)
	}
	switch dt {
	case constant.Boolean:
		switch t := raw.(type) {
		case bool:
			return BoolValue(t), nil
		default:
			f, ok := toFloat(raw)
			if !ok {
				return Value{}, fmt.Errorf("cannot convert %T to %s", raw, dt)
			}
			return BoolValue(f != 0), nil
		}
	case constant.Byte, constant.Int16, constant.Int32, constant.Int64:
		r := intRanges[dt]
		if i, ok := exactInt(raw); ok {
			if float64(i) < r[0] || float64(i) > r[1] {
				return Value{}, fmt.Errorf("value %v out of range for %s", raw, dt)
			}
			return IntValue(dt, i), nil
		}
		f, ok := toFloat(raw)
		if !ok {
			return Value{}, fmt.Errorf("cannot convert %T to %s", raw, dt)
		}
		f = math.Round(f)
		// float64(math.MaxInt64) is 2^63, one past the largest int64
		if math.IsNaN(f) || f < r[0] || f > r[1] || f >= 1<<63 {
			return Value{}, fmt.Errorf("value %v out of range for %s", raw, dt)
		}
		return IntValue(dt, int64(f)), nil
	case constant.Float, constant.Double:
		f, ok := toFloat(raw)
		if !ok {
			return Value{}, fmt.Errorf("cannot convert %T to %s", raw, dt)
		}
		return FloatValue(dt, f), nil
	case constant.String:
		return StringValue(fmt.Sprint(raw)), nil
	}
	return Value{}, fmt.Errorf("unsupported data type %s", dt)
}

// ParseValue reads the textual form of a value.
func ParseValue(dt constant.DataType, s string) (Value, error) {
	if dt == constant.String {
		return StringValue(s), nil
	}
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return NullValue(), nil
	}
	switch dt {
	case constant.Boolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case constant.Byte, constant.Int16, constant.Int32, constant.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return Value{}, err
			}
			return ValueOf(dt, f)
		}
		return ValueOf(dt, i)
	case constant.Float, constant.Double:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, err
		}
		return FloatValue(dt, f), nil
	}
	return Value{}, fmt.Errorf("unsupported data type %s", dt)
}

func toFloat(raw interface{}) (float64, bool) {
	switch t := raw.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

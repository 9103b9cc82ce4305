// Package scaling converts raw device readings to engineering units.
package scaling

import (
	"math"
	"strconv"
	"tagscan/pkg/runtime"
)

// Scale maps a raw reading onto the tag's engineering range.
// Tags without a complete scaling configuration, and non numeric values, pass through unchanged.
func Scale(raw runtime.Value, tag *runtime.Tag) (runtime.Value, error) {
	if raw.IsNull() || !tag.HasScaling() || !raw.Kind().IsNumeric() {
		return raw, nil
	}
	x, _ := raw.Float64()
	rawMin, rawMax := *tag.RawMin, *tag.RawMax
	scaledMin, scaledMax := *tag.ScaledMin, *tag.ScaledMax
	if rawMax == rawMin {
		return runtime.Value{}, &runtime.ConfigurationError{TagID: tag.ID, Field: "rawMax", Reason: "rawMax equals rawMin"}
	}

	// endpoints map exactly, the division below may round
	switch x {
	case rawMin:
		return runtime.DoubleValue(scaledMin), nil
	case rawMax:
		return runtime.DoubleValue(scaledMax), nil
	}
	return runtime.DoubleValue(linear(x, rawMin, rawMax, scaledMin, scaledMax)), nil
}

// Unscale is the inverse of Scale. The result keeps the tag's raw data type.
func Unscale(eng runtime.Value, tag *runtime.Tag) (runtime.Value, error) {
	if eng.IsNull() || !tag.HasScaling() || !eng.Kind().IsNumeric() {
		return eng.Convert(tag.DataType)
	}
	y, _ := eng.Float64()
	rawMin, rawMax := *tag.RawMin, *tag.RawMax
	scaledMin, scaledMax := *tag.ScaledMin, *tag.ScaledMax
	if scaledMax == scaledMin {
		return runtime.Value{}, &runtime.ConfigurationError{TagID: tag.ID, Field: "scaledMax", Reason: "scaledMax equals scaledMin"}
	}

	var x float64
	switch y {
	case scaledMin:
		x = rawMin
	case scaledMax:
		x = rawMax
	default:
		x = linear(y, scaledMin, scaledMax, rawMin, rawMax)
	}
	return runtime.ValueOf(tag.DataType, x)
}

func linear(x, fromMin, fromMax, toMin, toMax float64) float64 {
	return toMin + (x-fromMin)*(toMax-toMin)/(fromMax-fromMin)
}

// Display formats v with the tag's decimal places. Stored values are never rounded.
func Display(v runtime.Value, decimalPlaces int) string {
	f, ok := v.Float64()
	if !ok {
		return v.String()
	}
	if decimalPlaces < 0 {
		decimalPlaces = 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', decimalPlaces, 64)
}

// Package deadband decides whether a new reading differs enough from the last accepted one.
package deadband

import (
	"math"
	"tagscan/pkg/runtime"
)

// ShouldPropagate reports whether next replaces prev.
// The first observation and any quality change always propagate. Numeric values
// propagate when they moved by at least deadband; other kinds on any change.
func ShouldPropagate(next, prev runtime.Value, deadband float64, qualityChanged bool) bool {
	if qualityChanged || prev.IsNull() {
		return true
	}
	if next.IsNull() {
		return false
	}

	n, nok := next.Float64()
	p, pok := prev.Float64()
	if nok && pok {
		if math.IsNaN(n) || math.IsNaN(p) {
			return math.IsNaN(n) != math.IsNaN(p)
		}
		return math.Abs(n-p) >= deadband
	}
	return !next.Equal(prev)
}

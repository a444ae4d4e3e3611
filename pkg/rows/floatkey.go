package rows

import (
	"math"
	"strconv"
)

// canonicalNaN is the bit pattern every NaN is folded into. It matches math.NaN().
const canonicalNaN uint64 = 0x7FF8000000000001

// FloatKey wraps a float64 by its bit pattern so it can be compared with == and
// used inside map keys. All NaNs collapse into one value that equals itself and
// sorts after every number. +0 and -0 keep distinct bit patterns and therefore
// stay distinct keys.
type FloatKey struct {
	bits uint64
}

// NewFloatKey returns the key for f, canonicalising NaN.
func NewFloatKey(f float64) FloatKey {
	if math.IsNaN(f) {
		return FloatKey{bits: canonicalNaN}
	}
	return FloatKey{bits: math.Float64bits(f)}
}

// Float64 returns the wrapped value.
func (k FloatKey) Float64() float64 {
	return math.Float64frombits(k.bits)
}

// Bits returns the canonical bit pattern used for equality and hashing.
func (k FloatKey) Bits() uint64 {
	return k.bits
}

// IsNaN reports whether the key holds the canonical NaN.
func (k FloatKey) IsNaN() bool {
	return k.bits == canonicalNaN
}

// Compare returns -1, 0 or +1. Numbers compare by value with -0 < +0, and NaN
// is greater than everything else.
func (k FloatKey) Compare(other FloatKey) int {
	switch {
	case k.bits == other.bits:
		return 0
	case k.IsNaN():
		return 1
	case other.IsNaN():
		return -1
	}
	a, b := k.Float64(), other.Float64()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case math.Signbit(a):
		// Only +0 and -0 get here.
		return -1
	default:
		return 1
	}
}

// String formats the value in its shortest round-trip form.
func (k FloatKey) String() string {
	return strconv.FormatFloat(k.Float64(), 'g', -1, 64)
}

package rows

import (
	"fmt"
	"strings"
)

// Shape selects which row type a run reads, learns and writes.
// The zero value is ShapeFloatVector.
type Shape int

const (
	// ShapeFloatVector is a variable-arity vector of floats.
	ShapeFloatVector Shape = iota
	// ShapePriceVolume is a price and a volume.
	ShapePriceVolume
	// ShapeOHLC is an open/high/low/close bar.
	ShapeOHLC
	// ShapeOHLCV is an open/high/low/close bar with volume.
	ShapeOHLCV
	// ShapeIntVector is a variable-arity vector of signed integers.
	ShapeIntVector
	// ShapeUintVector is a variable-arity vector of unsigned integers.
	ShapeUintVector
)

var shapeNames = [...]string{
	ShapeFloatVector: "f64",
	ShapePriceVolume: "hl2",
	ShapeOHLC:        "ohlc",
	ShapeOHLCV:       "ohlcv",
	ShapeIntVector:   "i64",
	ShapeUintVector:  "u64",
}

// Shapes returns every supported shape in declaration order.
func Shapes() []Shape {
	return []Shape{ShapeFloatVector, ShapePriceVolume, ShapeOHLC, ShapeOHLCV, ShapeIntVector, ShapeUintVector}
}

// String returns the short name used by the CLI and configuration.
func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

// Width returns the fixed number of fields of the shape, or 0 for vector shapes.
func (s Shape) Width() int {
	switch s {
	case ShapePriceVolume:
		return 2
	case ShapeOHLC:
		return 4
	case ShapeOHLCV:
		return 5
	default:
		return 0
	}
}

// ParseShape resolves a shape from its short name (case-insensitive).
func ParseShape(name string) (Shape, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range shapeNames {
		if n == name {
			return Shape(s), nil
		}
	}
	return 0, fmt.Errorf("unknown row shape %q", name)
}

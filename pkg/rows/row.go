package rows

import (
	"encoding/binary"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Row is one observation. It is implemented only by the types in this package.
type Row interface {
	// Shape returns the shape the row belongs to.
	Shape() Shape
	// Key returns a canonical binary encoding of the row. Two rows are equal
	// exactly when their keys are equal.
	Key() string
	// Equal reports structural equality.
	Equal(other Row) bool
	// Clone returns a copy that shares no memory with the receiver.
	Clone() Row
	// Record returns the CSV fields of the row in declaration order.
	Record() []string

	sealed()
}

// PriceVolume is a single price with its traded volume.
type PriceVolume struct {
	Price  FloatKey
	Volume uint64
}

// OHLC is an open/high/low/close bar.
type OHLC struct {
	Open, High, Low, Close FloatKey
}

// OHLCV is an open/high/low/close bar with volume.
type OHLCV struct {
	Open, High, Low, Close FloatKey
	Volume                 uint64
}

// FloatVector is an ordered list of floats.
type FloatVector []FloatKey

// IntVector is an ordered list of signed integers.
type IntVector []int64

// UintVector is an ordered list of unsigned integers.
type UintVector []uint64

// Hash returns a stable 64-bit hash of r, consistent with Equal.
func Hash(r Row) uint64 {
	return xxhash.Sum64String(r.Key())
}

// Digest hashes a sequence of rows. It is order sensitive, so two streams with
// the same rows in a different order get different digests.
func Digest(rs []Row) uint64 {
	d := xxhash.New()
	var lenBuf []byte
	for _, r := range rs {
		key := r.Key()
		lenBuf = binary.AppendUvarint(lenBuf[:0], uint64(len(key)))
		_, _ = d.Write(lenBuf)
		_, _ = d.WriteString(key)
	}
	return d.Sum64()
}

func keyOf(shape Shape, n int) []byte {
	buf := make([]byte, 1, 1+8*n)
	buf[0] = byte(shape)
	return buf
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// PriceVolume

func (r PriceVolume) Shape() Shape { return ShapePriceVolume }

func (r PriceVolume) Key() string {
	buf := keyOf(ShapePriceVolume, 2)
	buf = binary.BigEndian.AppendUint64(buf, r.Price.bits)
	buf = binary.BigEndian.AppendUint64(buf, r.Volume)
	return string(buf)
}

func (r PriceVolume) Equal(other Row) bool {
	o, ok := other.(PriceVolume)
	return ok && r == o
}

func (r PriceVolume) Clone() Row { return r }

func (r PriceVolume) Record() []string {
	return []string{r.Price.String(), formatUint(r.Volume)}
}

func (PriceVolume) sealed() {}

// OHLC

func (r OHLC) Shape() Shape { return ShapeOHLC }

func (r OHLC) Key() string {
	buf := keyOf(ShapeOHLC, 4)
	for _, f := range [...]FloatKey{r.Open, r.High, r.Low, r.Close} {
		buf = binary.BigEndian.AppendUint64(buf, f.bits)
	}
	return string(buf)
}

func (r OHLC) Equal(other Row) bool {
	o, ok := other.(OHLC)
	return ok && r == o
}

func (r OHLC) Clone() Row { return r }

func (r OHLC) Record() []string {
	return []string{r.Open.String(), r.High.String(), r.Low.String(), r.Close.String()}
}

func (OHLC) sealed() {}

// OHLCV

func (r OHLCV) Shape() Shape { return ShapeOHLCV }

func (r OHLCV) Key() string {
	buf := keyOf(ShapeOHLCV, 5)
	for _, f := range [...]FloatKey{r.Open, r.High, r.Low, r.Close} {
		buf = binary.BigEndian.AppendUint64(buf, f.bits)
	}
	buf = binary.BigEndian.AppendUint64(buf, r.Volume)
	return string(buf)
}

func (r OHLCV) Equal(other Row) bool {
	o, ok := other.(OHLCV)
	return ok && r == o
}

func (r OHLCV) Clone() Row { return r }

func (r OHLCV) Record() []string {
	return []string{r.Open.String(), r.High.String(), r.Low.String(), r.Close.String(), formatUint(r.Volume)}
}

func (OHLCV) sealed() {}

// FloatVector

func (r FloatVector) Shape() Shape { return ShapeFloatVector }

func (r FloatVector) Key() string {
	buf := keyOf(ShapeFloatVector, len(r))
	for _, f := range r {
		buf = binary.BigEndian.AppendUint64(buf, f.bits)
	}
	return string(buf)
}

func (r FloatVector) Equal(other Row) bool {
	o, ok := other.(FloatVector)
	return ok && slices.Equal(r, o)
}

func (r FloatVector) Clone() Row { return slices.Clone(r) }

func (r FloatVector) Record() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.String()
	}
	return out
}

func (FloatVector) sealed() {}

// IntVector

func (r IntVector) Shape() Shape { return ShapeIntVector }

func (r IntVector) Key() string {
	buf := keyOf(ShapeIntVector, len(r))
	for _, v := range r {
		buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	}
	return string(buf)
}

func (r IntVector) Equal(other Row) bool {
	o, ok := other.(IntVector)
	return ok && slices.Equal(r, o)
}

func (r IntVector) Clone() Row { return slices.Clone(r) }

func (r IntVector) Record() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = strconv.FormatInt(v, 10)
	}
	return out
}

func (IntVector) sealed() {}

// UintVector

func (r UintVector) Shape() Shape { return ShapeUintVector }

func (r UintVector) Key() string {
	buf := keyOf(ShapeUintVector, len(r))
	for _, v := range r {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	return string(buf)
}

func (r UintVector) Equal(other Row) bool {
	o, ok := other.(UintVector)
	return ok && slices.Equal(r, o)
}

func (r UintVector) Clone() Row { return slices.Clone(r) }

func (r UintVector) Record() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = formatUint(v)
	}
	return out
}

func (UintVector) sealed() {}

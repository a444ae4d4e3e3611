package rows

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRecord is matched by every MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError reports a record that does not fit the active shape.
// Line is 1-based and 0 when the record did not come from a Reader. Field is
// the 0-based offending column, or -1 when the whole record is at fault.
type MalformedRecordError struct {
	Line   int
	Field  int
	Record []string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	var where string
	if e.Line > 0 {
		where = fmt.Sprintf(" on line %d", e.Line)
	}
	if e.Field >= 0 {
		return fmt.Sprintf("malformed record%s, field %d: %v", where, e.Field+1, e.Err)
	}
	return fmt.Sprintf("malformed record%s: %v", where, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedRecord) true.
func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// Codec turns CSV records into rows of one shape.
// A Codec remembers the arity of the first vector record it decodes, so it
// must not be shared between concurrent readers.
type Codec struct {
	shape  Shape
	strict bool
	arity  int
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithStrictArity rejects vector records whose length differs from the first
// decoded record. By default ragged vectors are accepted as they come.
func WithStrictArity(strict bool) CodecOption {
	return func(c *Codec) { c.strict = strict }
}

// NewCodec returns a codec for shape.
func NewCodec(shape Shape, opts ...CodecOption) *Codec {
	c := &Codec{shape: shape, arity: shape.Width()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shape returns the codec's shape.
func (c *Codec) Shape() Shape { return c.shape }

// Arity returns the expected number of fields. For vector shapes it is 0 until
// the first record has been decoded.
func (c *Codec) Arity() int { return c.arity }

// Decode parses one record into a row of the codec's shape.
func (c *Codec) Decode(record []string) (Row, error) {
	if width := c.shape.Width(); width > 0 && len(record) != width {
		return nil, malformed(record, -1, fmt.Errorf("%s rows have %d fields, got %d", c.shape, width, len(record)))
	}
	if c.shape.Width() == 0 {
		if len(record) == 0 {
			return nil, malformed(record, -1, errors.New("empty record"))
		}
		if c.strict && c.arity != 0 && len(record) != c.arity {
			return nil, malformed(record, -1, fmt.Errorf("expected %d fields, got %d", c.arity, len(record)))
		}
	}

	row, err := c.decode(record)
	if err != nil {
		return nil, err
	}
	if c.arity == 0 && c.shape.Width() == 0 {
		c.arity = len(record)
	}
	return row, nil
}

func (c *Codec) decode(record []string) (Row, error) {
	switch c.shape {
	case ShapePriceVolume:
		p, err := parseFloat(record, 0)
		if err != nil {
			return nil, err
		}
		v, err := parseUint(record, 1)
		if err != nil {
			return nil, err
		}
		return PriceVolume{Price: p, Volume: v}, nil

	case ShapeOHLC, ShapeOHLCV:
		var f [4]FloatKey
		for i := range f {
			var err error
			if f[i], err = parseFloat(record, i); err != nil {
				return nil, err
			}
		}
		if c.shape == ShapeOHLC {
			return OHLC{Open: f[0], High: f[1], Low: f[2], Close: f[3]}, nil
		}
		v, err := parseUint(record, 4)
		if err != nil {
			return nil, err
		}
		return OHLCV{Open: f[0], High: f[1], Low: f[2], Close: f[3], Volume: v}, nil

	case ShapeFloatVector:
		out := make(FloatVector, len(record))
		for i := range record {
			var err error
			if out[i], err = parseFloat(record, i); err != nil {
				return nil, err
			}
		}
		return out, nil

	case ShapeIntVector:
		out := make(IntVector, len(record))
		for i, field := range record {
			v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return nil, malformed(record, i, err)
			}
			out[i] = v
		}
		return out, nil

	case ShapeUintVector:
		out := make(UintVector, len(record))
		for i := range record {
			var err error
			if out[i], err = parseUint(record, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported row shape %s", c.shape)
}

func malformed(record []string, field int, err error) *MalformedRecordError {
	return &MalformedRecordError{Field: field, Record: record, Err: err}
}

func parseFloat(record []string, i int) (FloatKey, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
	if err != nil {
		return FloatKey{}, malformed(record, i, err)
	}
	return NewFloatKey(f), nil
}

func parseUint(record []string, i int) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(record[i]), 10, 64)
	if err != nil {
		return 0, malformed(record, i, err)
	}
	return v, nil
}

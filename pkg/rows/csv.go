package rows

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// CSVOptions holds options for reading and writing row files.
type CSVOptions struct {
	HasHeader bool // Skip the first record. It is never checked against the shape.
	Delimiter rune // Field delimiter (default: ',')
}

// DefaultCSVOptions returns comma-separated options without a header.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{Delimiter: ','}
}

// Reader reads typed rows from CSV text, one record at a time.
type Reader struct {
	csv        *csv.Reader
	codec      *Codec
	skipHeader bool
}

// NewReader returns a Reader decoding records from r with codec.
func NewReader(r io.Reader, codec *Codec, opts *CSVOptions) *Reader {
	if opts == nil {
		opts = DefaultCSVOptions()
	}
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &Reader{csv: cr, codec: codec, skipHeader: opts.HasHeader}
}

// Read returns the next row, or io.EOF once the input is exhausted.
func (r *Reader) Read() (Row, error) {
	if r.skipHeader {
		r.skipHeader = false
		if _, err := r.csv.Read(); err != nil {
			return nil, r.wrap(err)
		}
	}
	record, err := r.csv.Read()
	if err != nil {
		return nil, r.wrap(err)
	}
	row, err := r.codec.Decode(record)
	if err != nil {
		var mre *MalformedRecordError
		if errors.As(err, &mre) {
			mre.Line, _ = r.csv.FieldPos(0)
		}
		return nil, err
	}
	return row, nil
}

func (r *Reader) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedRecordError{Line: pe.Line, Field: -1, Err: pe.Err}
	}
	return fmt.Errorf("read record: %w", err)
}

// ReadAll reads every remaining row.
func (r *Reader) ReadAll() ([]Row, error) {
	var out []Row
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
}

// LoadFile reads the whole file at path into memory.
func LoadFile(path string, codec *Codec, opts *CSVOptions) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	out, err := NewReader(file, codec, opts).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Writer writes rows as CSV records without a header.
type Writer struct {
	csv *csv.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer, opts *CSVOptions) *Writer {
	cw := csv.NewWriter(w)
	if opts != nil && opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	return &Writer{csv: cw}
}

// Write buffers one row.
func (w *Writer) Write(row Row) error {
	return w.csv.Write(row.Record())
}

// Flush writes any buffered data and reports the first write error.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// WriteFile encodes rs in memory and then replaces path atomically, so a
// failed write never leaves a partial file behind.
func WriteFile(path string, rs []Row, opts *CSVOptions) error {
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	for _, row := range rs {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

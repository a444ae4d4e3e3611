package rows

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReaderHeader(t *testing.T) {
	data := "price,volume\n10.5,100\n11,200\n"

	withHeader := DefaultCSVOptions()
	withHeader.HasHeader = true
	got, err := NewReader(strings.NewReader(data), NewCodec(ShapePriceVolume), withHeader).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	want := PriceVolume{Price: NewFloatKey(10.5), Volume: 100}
	if !got[0].Equal(want) {
		t.Errorf("expected %v, got %v", want, got[0])
	}

	// Without the header flag the header line is just a bad record.
	_, err = NewReader(strings.NewReader(data), NewCodec(ShapePriceVolume), nil).ReadAll()
	var mre *MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if mre.Line != 1 {
		t.Errorf("expected line 1, got %d", mre.Line)
	}
}

func TestReaderReportsLine(t *testing.T) {
	data := "1,2,3,4\n1,2,3,4\n1,2,oops,4\n"
	_, err := NewReader(strings.NewReader(data), NewCodec(ShapeOHLC), nil).ReadAll()
	var mre *MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if mre.Line != 3 || mre.Field != 2 {
		t.Errorf("expected line 3 field 2, got line %d field %d", mre.Line, mre.Field)
	}
}

func TestReaderDelimiter(t *testing.T) {
	opts := &CSVOptions{Delimiter: ';'}
	got, err := NewReader(strings.NewReader("1; 2; 3\n"), NewCodec(ShapeIntVector), opts).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !got[0].Equal(IntVector{1, 2, 3}) {
		t.Errorf("unexpected row %v", got[0])
	}
}

func TestReaderEmptyInput(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.HasHeader = true
	got, err := NewReader(strings.NewReader(""), NewCodec(ShapeFloatVector), opts).ReadAll()
	if err != nil {
		t.Fatalf("expected no error on empty input, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}

func TestWriteFileAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rs := []Row{
		OHLCV{Open: NewFloatKey(1), High: NewFloatKey(2), Low: NewFloatKey(0.5), Close: NewFloatKey(1.5), Volume: 10},
		OHLCV{Open: NewFloatKey(1.5), High: NewFloatKey(1.75), Low: NewFloatKey(1), Close: NewFloatKey(1.25), Volume: 20},
	}
	if err := WriteFile(path, rs, nil); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "1,2,0.5,1.5,10\n1.5,1.75,1,1.25,20\n"; string(raw) != want {
		t.Errorf("expected file %q, got %q", want, string(raw))
	}

	back, err := LoadFile(path, NewCodec(ShapeOHLCV), nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(back) != len(rs) {
		t.Fatalf("expected %d rows, got %d", len(rs), len(back))
	}
	for i := range rs {
		if !back[i].Equal(rs[i]) {
			t.Errorf("row %d: expected %v, got %v", i, rs[i], back[i])
		}
	}
}

func TestWriteFileBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	if err := WriteFile(path, []Row{IntVector{1}}, nil); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should exist after a failed write")
	}
}

package record

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type testReporter struct {
	calls int
	last  error
}

func (r *testReporter) Corruption(bytes int, err error) {
	r.calls++
	r.last = err
}

func writeRecords(t *testing.T, records ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range records {
		if err := w.AddRecord(rec); err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
	}
	return &buf
}

func TestWriteReadSingleRecord(t *testing.T) {
	buf := writeRecords(t, []byte("hello manifest"))

	r := NewReader(bytes.NewReader(buf.Bytes()), nil, true)
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "hello manifest" {
		t.Errorf("record = %q", rec)
	}
	if _, err := r.ReadRecord(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestWriteReadMultipleRecords(t *testing.T) {
	want := [][]byte{
		[]byte("one"),
		[]byte("two"),
		{},
		[]byte("four"),
	}
	buf := writeRecords(t, want...)

	r := NewReader(bytes.NewReader(buf.Bytes()), nil, true)
	for i, w := range want {
		rec, err := r.ReadRecord()
		if err != nil {
			t.Fatalf("ReadRecord %d: %v", i, err)
		}
		if !bytes.Equal(rec, w) {
			t.Errorf("record %d = %q, want %q", i, rec, w)
		}
	}
	if _, err := r.ReadRecord(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestLargeRecordFragmentation(t *testing.T) {
	// Spans three blocks: First + Middle + Last.
	large := []byte(strings.Repeat("0123456789abcdef", 5000)) // 80000 bytes
	buf := writeRecords(t, large, []byte("tail"))

	// First physical record fills the remainder of block 0.
	if got := RecordType(buf.Bytes()[6]); got != FirstType {
		t.Errorf("first fragment type = %v, want FirstType", got)
	}
	if got := RecordType(buf.Bytes()[BlockSize+6]); got != MiddleType {
		t.Errorf("second fragment type = %v, want MiddleType", got)
	}
	if got := RecordType(buf.Bytes()[2*BlockSize+6]); got != LastType {
		t.Errorf("third fragment type = %v, want LastType", got)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), nil, true)
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !bytes.Equal(rec, large) {
		t.Errorf("large record mismatch: got %d bytes, want %d", len(rec), len(large))
	}
	rec, err = r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord tail: %v", err)
	}
	if string(rec) != "tail" {
		t.Errorf("tail = %q", rec)
	}
}

func TestBlockBoundaryPadding(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	// Leave fewer than HeaderSize bytes in the block: the writer must pad
	// with zeros and move to the next block.
	first := bytes.Repeat([]byte("x"), BlockSize-HeaderSize-3)
	if err := w.AddRecord(first); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if w.BlockOffset() != BlockSize-3 {
		t.Fatalf("BlockOffset = %d, want %d", w.BlockOffset(), BlockSize-3)
	}
	if err := w.AddRecord([]byte("next-block")); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), nil, true)
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !bytes.Equal(rec, first) {
		t.Error("first record mismatch")
	}
	rec, err = r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "next-block" {
		t.Errorf("second record = %q", rec)
	}
}

func TestCorruptedRecordSkipped(t *testing.T) {
	buf := writeRecords(t, []byte("corrupt-me"), []byte("survivor"))
	data := buf.Bytes()
	data[HeaderSize] ^= 0xff // flip first payload byte of record 1

	reporter := &testReporter{}
	r := NewReader(bytes.NewReader(data), reporter, true)

	// The tolerant reader drops the bad record and continues.
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "survivor" {
		t.Errorf("record = %q, want %q", rec, "survivor")
	}
	if reporter.calls == 0 {
		t.Error("corruption not reported")
	}
	if !errors.Is(reporter.last, ErrCorruptedRecord) {
		t.Errorf("reported err = %v", reporter.last)
	}
}

func TestCorruptionMidFragmentDropsLogicalRecord(t *testing.T) {
	// Record 1 spans two blocks (First + Last); corrupt the Last fragment.
	large := bytes.Repeat([]byte("y"), 40000)
	buf := writeRecords(t, large, []byte("after"))
	data := buf.Bytes()

	// Last fragment payload starts right after the header at the top of block 1.
	data[BlockSize+HeaderSize+100] ^= 0xff

	reporter := &testReporter{}
	r := NewReader(bytes.NewReader(data), reporter, true)

	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "after" {
		t.Errorf("record = %q, want %q (partial record must be dropped)", rec, "after")
	}
	if reporter.calls == 0 {
		t.Error("corruption not reported")
	}
}

func TestStrictReaderFailsOnCorruption(t *testing.T) {
	buf := writeRecords(t, []byte("good"), []byte("bad-record"), []byte("unreachable"))
	data := buf.Bytes()

	// Corrupt the second record's payload.
	secondOff := HeaderSize + len("good") + HeaderSize
	data[secondOff] ^= 0xff

	r := NewStrictReader(bytes.NewReader(data))
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "good" {
		t.Errorf("record = %q", rec)
	}

	if _, err := r.ReadRecord(); !errors.Is(err, ErrCorruptedRecord) {
		t.Errorf("strict reader err = %v, want ErrCorruptedRecord", err)
	}
	// The error is sticky.
	if _, err := r.ReadRecord(); !errors.Is(err, ErrCorruptedRecord) {
		t.Errorf("strict reader err not sticky: %v", err)
	}
}

func TestTruncatedTailIsCleanEOF(t *testing.T) {
	buf := writeRecords(t, []byte("complete"), []byte("torn-tail-record"))
	data := buf.Bytes()
	data = data[:len(data)-5] // cut into the second record's payload

	reporter := &testReporter{}
	r := NewReader(bytes.NewReader(data), reporter, true)

	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "complete" {
		t.Errorf("record = %q", rec)
	}

	// The torn tail is not corruption: the writer died mid-record.
	if _, err := r.ReadRecord(); err != io.EOF {
		t.Errorf("expected EOF for torn tail, got %v", err)
	}
	if reporter.calls != 0 {
		t.Errorf("torn tail reported as corruption (%d calls)", reporter.calls)
	}
}

func TestUnknownTypeSafeIgnore(t *testing.T) {
	buf := writeRecords(t, []byte("real"))
	data := buf.Bytes()

	// Prepend a record whose type has the safe-to-ignore bit set.
	// Checksums are not verified for unknown types before the type switch,
	// so a zero checksum is fine when verification is off.
	unknown := make([]byte, HeaderSize+3)
	// length = 3, type with bit 7 set
	unknown[4] = 3
	unknown[6] = byte(RecordTypeSafeIgnoreMask | 0x01)
	full := append(unknown, data...)

	r := NewReader(bytes.NewReader(full), nil, false)
	rec, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(rec) != "real" {
		t.Errorf("record = %q", rec)
	}
}

func TestRecordTypeString(t *testing.T) {
	tests := []struct {
		t    RecordType
		want string
	}{
		{ZeroType, "ZeroType"},
		{FullType, "FullType"},
		{FirstType, "FirstType"},
		{MiddleType, "MiddleType"},
		{LastType, "LastType"},
		{RecordType(77), "UnknownType"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("RecordType(%d).String() = %q, want %q", tt.t, got, tt.want)
		}
	}
}

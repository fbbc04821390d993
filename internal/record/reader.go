// Log record reading: the inverse of writer.go. ReadRecord reassembles
// logical records from physical fragments and skips block padding. By
// default corruption does not stop the stream; the damaged stretch is
// reported and the scan resumes at the next physical record, the way
// RocksDB tolerates corrupted tail records during replay. StrictReader
// is the all-or-nothing variant for MANIFEST recovery.
//
// Reference: RocksDB v10.7.5 db/log_reader.{h,cc}.
package record

import (
	"errors"
	"fmt"
	"io"

	"github.com/aalhour/titanyard/internal/checksum"
	"github.com/aalhour/titanyard/internal/encoding"
)

// Errors handed to a Reporter when a damaged stretch of log is dropped.
var (
	ErrCorruptedRecord        = errors.New("record: corrupted record (bad checksum)")
	ErrShortRecord            = errors.New("record: short record")
	ErrInvalidRecordType      = errors.New("record: invalid record type")
	ErrUnexpectedMiddleRecord = errors.New("record: unexpected middle record")
	ErrUnexpectedLastRecord   = errors.New("record: unexpected last record")
	ErrUnexpectedFirstRecord  = errors.New("record: unexpected first record")
)

// errBadRecord signals that readPhysicalRecord dropped a physical record
// and the scan can resume at the next one.
var errBadRecord = errors.New("record: bad record")

// Reporter receives corruption notices from a Reader. The byte count is
// the approximate amount of log discarded.
type Reporter interface {
	Corruption(bytes int, err error)
}

// Reader reassembles logical records from a log stream.
//
// A record torn off at the end of the file is not corruption: the writer
// died mid-append, so the partial tail is silently discarded and the log
// ends at the previous record.
type Reader struct {
	src      io.Reader
	reporter Reporter
	verify   bool

	block []byte // one BlockSize read buffer
	avail []byte // unread remainder of the current block
	eof   bool

	partial    []byte // reassembly buffer for First/Middle/Last chains
	assembling bool
}

// NewReader reads logical records from src, which must be positioned at
// the start of a log file. A nil reporter discards corruption notices.
// verify controls per-record checksum validation.
func NewReader(src io.Reader, reporter Reporter, verify bool) *Reader {
	return &Reader{
		src:      src,
		reporter: reporter,
		verify:   verify,
		block:    make([]byte, BlockSize),
	}
}

// ReadRecord returns the next logical record, or io.EOF once the log is
// exhausted. The returned slice is owned by the caller.
func (r *Reader) ReadRecord() ([]byte, error) {
	r.partial = r.partial[:0]
	r.assembling = false

	for {
		typ, payload, err := r.readPhysicalRecord()
		switch {
		case errors.Is(err, errBadRecord):
			// A physical record was dropped. Anything assembled so far
			// belongs to the same damaged logical record.
			if r.assembling {
				r.reportCorruption(len(r.partial), ErrCorruptedRecord)
				r.partial = r.partial[:0]
				r.assembling = false
			}
			continue
		case err != nil:
			// io.EOF inside an unfinished chain is a torn tail write;
			// the partial record is dropped without a corruption notice.
			return nil, err
		}

		switch typ {
		case FullType:
			if r.assembling {
				r.reportCorruption(len(r.partial), ErrUnexpectedFirstRecord)
			}
			return payload, nil

		case FirstType:
			if r.assembling {
				r.reportCorruption(len(r.partial), ErrUnexpectedFirstRecord)
			}
			r.partial = append(r.partial[:0], payload...)
			r.assembling = true

		case MiddleType:
			if !r.assembling {
				r.reportCorruption(len(payload), ErrUnexpectedMiddleRecord)
				continue
			}
			r.partial = append(r.partial, payload...)

		case LastType:
			if !r.assembling {
				r.reportCorruption(len(payload), ErrUnexpectedLastRecord)
				continue
			}
			r.partial = append(r.partial, payload...)
			r.assembling = false
			out := make([]byte, len(r.partial))
			copy(out, r.partial)
			return out, nil

		case ZeroType:
			// Block padding.

		default:
			if typ&RecordTypeSafeIgnoreMask != 0 {
				// Unknown but marked skippable by a future format.
				continue
			}
			r.reportCorruption(len(payload), ErrInvalidRecordType)
		}
	}
}

// readPhysicalRecord scans forward to the next physical record. It
// returns errBadRecord when a record had to be dropped mid-file, and
// io.EOF at a clean or torn end of log.
func (r *Reader) readPhysicalRecord() (RecordType, []byte, error) {
	for {
		if len(r.avail) < HeaderSize {
			// Block tails too short for a header are writer padding.
			if r.eof {
				return 0, nil, io.EOF
			}
			if err := r.fill(); err != nil {
				return 0, nil, err
			}
			continue
		}

		crcStored := encoding.DecodeFixed32(r.avail[0:4])
		length := int(encoding.DecodeFixed16(r.avail[4:6]))
		typ := RecordType(r.avail[6])

		if HeaderSize+length > len(r.avail) {
			if r.eof {
				// The record extends past the end of the file: a torn
				// tail write, treated as end of log rather than
				// corruption.
				return 0, nil, io.EOF
			}
			r.reportCorruption(len(r.avail), ErrShortRecord)
			r.avail = nil
			return 0, nil, errBadRecord
		}

		payload := r.avail[HeaderSize : HeaderSize+length]
		r.avail = r.avail[HeaderSize+length:]

		if typ == ZeroType && length == 0 {
			// Header-only padding from a preallocated file.
			continue
		}

		if r.verify {
			crc := checksum.Value([]byte{byte(typ)})
			crc = checksum.Mask(checksum.Extend(crc, payload))
			if crc != crcStored {
				r.reportCorruption(HeaderSize+length, ErrCorruptedRecord)
				return 0, nil, errBadRecord
			}
		}

		out := make([]byte, len(payload))
		copy(out, payload)
		return typ, out, nil
	}
}

// fill replaces r.avail with the next block of the file. Bytes left over
// from the previous block have already been judged padding by the
// caller. A short final block is returned for processing with r.eof set;
// io.EOF comes back only when nothing remains at all.
func (r *Reader) fill() error {
	n, err := io.ReadFull(r.src, r.block)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.eof = true
		if n == 0 {
			return io.EOF
		}
	default:
		return err
	}
	r.avail = r.block[:n]
	return nil
}

func (r *Reader) reportCorruption(bytes int, err error) {
	if r.reporter != nil {
		r.reporter.Corruption(bytes, err)
	}
}

// StrictReader turns any reported corruption into a hard error from
// ReadRecord. MANIFEST replay uses it: a version edit log with a dropped
// record cannot be trusted to describe the store.
type StrictReader struct {
	inner    *Reader
	firstErr error
}

// NewStrictReader creates a reader that fails permanently on the first
// corruption it encounters.
func NewStrictReader(src io.Reader) *StrictReader {
	s := &StrictReader{}
	s.inner = NewReader(src, s, true)
	return s
}

// Corruption implements Reporter.
func (s *StrictReader) Corruption(bytes int, err error) {
	if s.firstErr == nil {
		s.firstErr = fmt.Errorf("%w (%d bytes dropped)", err, bytes)
	}
}

// ReadRecord reads the next record, failing if any corruption has been
// detected on this or any earlier call.
func (s *StrictReader) ReadRecord() ([]byte, error) {
	if s.firstErr != nil {
		return nil, s.firstErr
	}
	rec, err := s.inner.ReadRecord()
	if s.firstErr != nil {
		return nil, s.firstErr
	}
	return rec, err
}

// Log record writing in the RocksDB log format. A logical record is cut
// into physical fragments so that no fragment straddles a block
// boundary, which lets the reader resynchronize at any block start.
//
// Reference: RocksDB v10.7.5 db/log_writer.{h,cc}.
package record

import (
	"io"

	"github.com/aalhour/titanyard/internal/checksum"
	"github.com/aalhour/titanyard/internal/encoding"
)

// Writer appends logical records to a log stream.
type Writer struct {
	dest   io.Writer
	offset int // write position within the current block

	// CRC seed per type byte, computed once. Every record checksum
	// starts from the seed of its type.
	typeCRC [MaxRecordType + 1]uint32

	header [HeaderSize]byte
}

// NewWriter appends records to dest, which must be positioned at a
// block boundary (offset zero for a fresh log).
func NewWriter(dest io.Writer) *Writer {
	w := &Writer{dest: dest}
	for t := range w.typeCRC {
		w.typeCRC[t] = checksum.Value([]byte{byte(t)})
	}
	return w
}

// AddRecord appends one logical record. An empty record is legal and
// produces a single zero-length FullType fragment.
func (w *Writer) AddRecord(data []byte) error {
	begin := true
	for {
		// Pad out the block when the remainder cannot hold a header.
		if room := BlockSize - w.offset; room < HeaderSize {
			if room > 0 {
				if _, err := w.dest.Write(make([]byte, room)); err != nil {
					return err
				}
			}
			w.offset = 0
		}

		frag := min(len(data), BlockSize-w.offset-HeaderSize)
		end := frag == len(data)

		var typ RecordType
		switch {
		case begin && end:
			typ = FullType
		case begin:
			typ = FirstType
		case end:
			typ = LastType
		default:
			typ = MiddleType
		}

		if err := w.emitPhysicalRecord(typ, data[:frag]); err != nil {
			return err
		}
		data = data[frag:]
		begin = false

		if end {
			return nil
		}
	}
}

// emitPhysicalRecord writes one header-plus-payload fragment. AddRecord
// guarantees the payload fits the current block.
func (w *Writer) emitPhysicalRecord(t RecordType, payload []byte) error {
	if len(payload) > MaxRecordPayload {
		panic("record: fragment exceeds block payload capacity")
	}

	// Header layout: [4] CRC, [2] length, [1] type. The CRC covers the
	// type byte and the payload, masked for storage.
	encoding.EncodeFixed16(w.header[4:6], uint16(len(payload)))
	w.header[6] = byte(t)
	crc := checksum.Extend(w.typeCRC[t], payload)
	encoding.EncodeFixed32(w.header[:4], checksum.Mask(crc))

	if _, err := w.dest.Write(w.header[:]); err != nil {
		return err
	}
	if _, err := w.dest.Write(payload); err != nil {
		return err
	}
	w.offset += HeaderSize + len(payload)
	return nil
}

// BlockOffset reports the write position within the current block.
func (w *Writer) BlockOffset() int {
	return w.offset
}

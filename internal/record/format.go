// Package record reads and writes the RocksDB log format, used here as
// the container for the blob store MANIFEST. A log file is a sequence
// of 32 KiB blocks; logical records are cut into physical fragments so
// that a fragment never crosses a block boundary. Each fragment carries
// a seven byte header:
//
//	+---------+----------+----------+- ... -+
//	| CRC (4) | Size (2) | Type (1) | Payload |
//	+---------+----------+----------+- ... -+
//
// CRC is a masked crc32c over the type byte and payload. CRC and Size
// are little-endian.
//
// Reference: RocksDB v10.7.5 db/log_format.h.
package record

// BlockSize is the unit of reader resynchronization. Writers pad the
// tail of a block rather than let a header straddle two blocks.
const BlockSize = 32768

// HeaderSize is 4 bytes CRC + 2 bytes length + 1 byte type.
const HeaderSize = 7

// MaxRecordPayload caps a single physical record's payload: whatever
// remains of a block after its header.
const MaxRecordPayload = BlockSize - HeaderSize

// RecordType tags each physical record. The values are RocksDB's and
// are part of the on-disk format.
type RecordType uint8

const (
	// ZeroType marks preallocated file space; readers skip it.
	ZeroType RecordType = 0

	// FullType is a record contained in a single fragment.
	FullType RecordType = 1

	// FirstType, MiddleType and LastType frame a record that spans
	// fragments.
	FirstType  RecordType = 2
	MiddleType RecordType = 3
	LastType   RecordType = 4

	// MaxRecordType is the highest type this package emits.
	MaxRecordType = LastType
)

// RecordTypeSafeIgnoreMask marks types that future formats may add and
// that old readers skip without declaring corruption.
const RecordTypeSafeIgnoreMask = 1 << 7

var recordTypeNames = map[RecordType]string{
	ZeroType:   "ZeroType",
	FullType:   "FullType",
	FirstType:  "FirstType",
	MiddleType: "MiddleType",
	LastType:   "LastType",
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return "UnknownType"
}

package checksum

// Type is the checksum algorithm byte stored in block trailers on disk.
// The values are RocksDB's ChecksumType enum and MUST NOT change.
//
// Reference: RocksDB v10.7.5 include/rocksdb/table.h
type Type uint8

const (
	TypeNoChecksum Type = 0
	TypeCRC32C     Type = 1
	TypeXXHash     Type = 2 // recognized, not produced
	TypeXXHash64   Type = 3 // recognized, not produced
	TypeXXH3       Type = 4 // RocksDB format_version 5+
)

func (t Type) String() string {
	switch t {
	case TypeNoChecksum:
		return "NoChecksum"
	case TypeCRC32C:
		return "CRC32C"
	case TypeXXHash:
		return "XXHash"
	case TypeXXHash64:
		return "XXHash64"
	case TypeXXH3:
		return "XXH3"
	}
	return "Unknown"
}

// IsSupported reports whether this implementation computes the type.
func (t Type) IsSupported() bool {
	switch t {
	case TypeNoChecksum, TypeCRC32C, TypeXXH3:
		return true
	}
	return false
}

// CRC32CChecksumWithLastByte computes the RocksDB block checksum where
// lastByte (the compression type) trails the data buffer without being
// part of it. The result is masked for storage.
func CRC32CChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	crc := Value(data)
	crc = Extend(crc, []byte{lastByte})
	return Mask(crc)
}

// ComputeChecksum computes the block checksum of the given type over
// data plus the trailing compression type byte.
// REQUIRES: t.IsSupported()
func ComputeChecksum(t Type, data []byte, lastByte byte) uint32 {
	switch t {
	case TypeCRC32C:
		return CRC32CChecksumWithLastByte(data, lastByte)
	case TypeXXH3:
		return XXH3ChecksumWithLastByte(data, lastByte)
	}
	return 0
}

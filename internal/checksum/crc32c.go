// Package checksum provides the checksum algorithms blob files and the
// manifest store on disk:
//
//   - CRC32C (Castagnoli) with RocksDB-compatible masking. Blob records
//     and footers store unmasked CRC32C; the manifest log format stores
//     masked values.
//   - XXH3 (via github.com/zeebo/xxh3) for meta block trailers with
//     checksum type TypeXXH3.
//
// Reference: RocksDB v10.7.5
//   - util/crc32c.h
//   - util/crc32c.cc
package checksum

import (
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is RocksDB's kMaskDelta.
const maskDelta = 0xa282ead8

// Value returns the CRC32C of data, like RocksDB's crc32c::Value.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// Extend returns the CRC32C of concat(A, data) given initCRC, the
// CRC32C of A. Like RocksDB's crc32c::Extend.
func Extend(initCRC uint32, data []byte) uint32 {
	return crc32.Update(initCRC, crc32cTable, data)
}

// Mask rotates and offsets crc for storage. Computing the CRC of data
// that embeds CRCs is problematic, so stored CRCs are masked first.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask inverts Mask.
func Unmask(maskedCRC uint32) uint32 {
	rot := maskedCRC - maskDelta
	return (rot >> 17) | (rot << 15)
}

// xxh3.go implements XXH3-based block checksums.
//
// RocksDB's ComputeBuiltinChecksum with kXXH3 hashes the block contents,
// takes the low 32 bits, then folds in the trailing compression-type byte
// with a multiplicative modifier so that the type byte is covered without
// being part of the hashed buffer.
//
// Reference: RocksDB v10.7.5
//   - table/format.cc (ComputeBuiltinChecksum, ModifyChecksumForLastByte)
package checksum

import (
	"github.com/zeebo/xxh3"
)

// kRandomPrime is the multiplier RocksDB applies to the last byte when
// folding it into an XXH3 block checksum.
const kRandomPrime = 0x6b9083d9

// XXH3Value computes the 64-bit XXH3 hash of data.
func XXH3Value(data []byte) uint64 {
	return xxh3.Hash(data)
}

// XXH3ChecksumWithLastByte computes the RocksDB-style XXH3 block checksum
// where lastByte (the compression type) is not part of the data buffer.
func XXH3ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	v := uint32(xxh3.Hash(data))
	return v ^ (uint32(lastByte) * kRandomPrime)
}

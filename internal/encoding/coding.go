// Package encoding implements the integer and slice codecs shared by
// every on-disk structure: blob records, blob file headers and footers,
// and manifest version edits. The byte layout is bit-compatible with
// RocksDB's util/coding.h, which Titan uses for the same structures.
//
// Fixed-width integers are little-endian. Varints use 7 payload bits
// per byte with the high bit as continuation.
//
// Reference: RocksDB v10.7.5
//   - util/coding.h
//   - util/coding.cc
package encoding

import (
	"encoding/binary"
	"errors"
)

// MaxVarint32Length and MaxVarint64Length bound the encoded size of a
// varint.
const (
	MaxVarint32Length = 5
	MaxVarint64Length = 10
)

var (
	// ErrBufferTooSmall reports a truncated input.
	ErrBufferTooSmall = errors.New("encoding: buffer too small")

	// ErrVarintOverflow reports a varint wider than the target type.
	ErrVarintOverflow = errors.New("encoding: varint overflow")

	// ErrVarintTermination reports a varint whose continuation bits run
	// past the end of the input.
	ErrVarintTermination = errors.New("encoding: varint not terminated")
)

// EncodeFixed16 writes value little-endian into dst.
// REQUIRES: len(dst) >= 2
func EncodeFixed16(dst []byte, value uint16) {
	binary.LittleEndian.PutUint16(dst, value)
}

// DecodeFixed16 reads a little-endian uint16 from src.
// REQUIRES: len(src) >= 2
func DecodeFixed16(src []byte) uint16 {
	return binary.LittleEndian.Uint16(src)
}

// EncodeFixed32 writes value little-endian into dst.
// REQUIRES: len(dst) >= 4
func EncodeFixed32(dst []byte, value uint32) {
	binary.LittleEndian.PutUint32(dst, value)
}

// DecodeFixed32 reads a little-endian uint32 from src.
// REQUIRES: len(src) >= 4
func DecodeFixed32(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

// EncodeFixed64 writes value little-endian into dst.
// REQUIRES: len(dst) >= 8
func EncodeFixed64(dst []byte, value uint64) {
	binary.LittleEndian.PutUint64(dst, value)
}

// DecodeFixed64 reads a little-endian uint64 from src.
// REQUIRES: len(src) >= 8
func DecodeFixed64(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

// AppendFixed32 appends value little-endian to dst.
func AppendFixed32(dst []byte, value uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, value)
}

// AppendFixed64 appends value little-endian to dst.
func AppendFixed64(dst []byte, value uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, value)
}

// EncodeVarint32 writes value as a varint into dst and returns the
// encoded length.
// REQUIRES: len(dst) >= MaxVarint32Length
func EncodeVarint32(dst []byte, value uint32) int {
	i := 0
	for value >= 0x80 {
		dst[i] = byte(value) | 0x80
		value >>= 7
		i++
	}
	dst[i] = byte(value)
	return i + 1
}

// EncodeVarint64 writes value as a varint into dst and returns the
// encoded length.
// REQUIRES: len(dst) >= MaxVarint64Length
func EncodeVarint64(dst []byte, value uint64) int {
	i := 0
	for value >= 0x80 {
		dst[i] = byte(value) | 0x80
		value >>= 7
		i++
	}
	dst[i] = byte(value)
	return i + 1
}

// AppendVarint32 appends value as a varint to dst.
func AppendVarint32(dst []byte, value uint32) []byte {
	var buf [MaxVarint32Length]byte
	n := EncodeVarint32(buf[:], value)
	return append(dst, buf[:n]...)
}

// AppendVarint64 appends value as a varint to dst.
func AppendVarint64(dst []byte, value uint64) []byte {
	var buf [MaxVarint64Length]byte
	n := EncodeVarint64(buf[:], value)
	return append(dst, buf[:n]...)
}

// DecodeVarint32 reads a varint32 from the front of src and returns the
// value and the number of bytes consumed.
//
// Like RocksDB's GetVarint32, at most five bytes are examined; a longer
// encoding fails with ErrVarintOverflow.
func DecodeVarint32(src []byte) (value uint32, bytesRead int, err error) {
	for shift := uint(0); shift < 32; shift += 7 {
		if bytesRead >= len(src) {
			return 0, 0, ErrVarintTermination
		}
		b := src[bytesRead]
		bytesRead++
		if b < 0x80 {
			return value | uint32(b)<<shift, bytesRead, nil
		}
		value |= uint32(b&0x7f) << shift
	}
	return 0, 0, ErrVarintOverflow
}

// DecodeVarint64 reads a varint64 from the front of src and returns the
// value and the number of bytes consumed.
func DecodeVarint64(src []byte) (value uint64, bytesRead int, err error) {
	for shift := uint(0); shift < 64; shift += 7 {
		if bytesRead >= len(src) {
			return 0, 0, ErrVarintTermination
		}
		b := src[bytesRead]
		bytesRead++
		if b < 0x80 {
			return value | uint64(b)<<shift, bytesRead, nil
		}
		value |= uint64(b&0x7f) << shift
	}
	return 0, 0, ErrVarintOverflow
}

// VarintLength returns the encoded size of v as a varint.
func VarintLength(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// AppendLengthPrefixedSlice appends value to dst as a varint32 length
// followed by the bytes.
func AppendLengthPrefixedSlice(dst []byte, value []byte) []byte {
	dst = AppendVarint32(dst, uint32(len(value)))
	return append(dst, value...)
}

// DecodeLengthPrefixedSlice reads a length-prefixed slice from the
// front of src. The returned slice aliases src.
func DecodeLengthPrefixedSlice(src []byte) (value []byte, bytesRead int, err error) {
	length, n, err := DecodeVarint32(src)
	if err != nil {
		return nil, 0, err
	}
	if n+int(length) > len(src) {
		return nil, 0, ErrBufferTooSmall
	}
	return src[n : n+int(length)], n + int(length), nil
}

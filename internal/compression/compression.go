// Package compression implements per-record compression for blob files.
//
// Each blob record carries a 1-byte compression type in its header. Blob
// files written with a compression dictionary (header flag bit 0)
// compress every record against that dictionary; Titan only trains
// dictionaries for Zstandard, so dict applies to ZSTD records and is
// ignored for every other algorithm.
//
// The type values match RocksDB's CompressionType enum and are stored on
// disk; they MUST NOT change.
//
// Reference: RocksDB v10.7.5
//   - util/compression.h
//   - util/compression.cc
package compression

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm. The values are RocksDB's.
type Type uint8

const (
	NoCompression     Type = 0x0
	SnappyCompression Type = 0x1
	ZlibCompression   Type = 0x2
	BZip2Compression  Type = 0x3 // recognized, not implemented
	LZ4Compression    Type = 0x4
	LZ4HCCompression  Type = 0x5
	XpressCompression Type = 0x6 // Windows-only in RocksDB, not implemented
	ZstdCompression   Type = 0x7
)

var typeNames = map[Type]string{
	NoCompression:     "NoCompression",
	SnappyCompression: "Snappy",
	ZlibCompression:   "Zlib",
	BZip2Compression:  "BZip2",
	LZ4Compression:    "LZ4",
	LZ4HCCompression:  "LZ4HC",
	XpressCompression: "Xpress",
	ZstdCompression:   "ZSTD",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// IsSupported reports whether records of this type can be read and
// written here.
func (t Type) IsSupported() bool {
	switch t {
	case NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, LZ4HCCompression, ZstdCompression:
		return true
	}
	return false
}

// SupportsDict reports whether the type takes a compression dictionary.
func (t Type) SupportsDict() bool {
	return t == ZstdCompression
}

// Compress compresses data without a dictionary.
func Compress(t Type, data []byte) ([]byte, error) {
	return CompressDict(t, data, nil)
}

// CompressDict compresses data, applying the raw-content dictionary for
// types that support one.
func CompressDict(t Type, data, dict []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		return snappy.Encode(nil, data), nil

	case ZlibCompression:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zlib close: %w", err)
		}
		return buf.Bytes(), nil

	case LZ4Compression:
		return compressLZ4(data, lz4.Fast)

	case LZ4HCCompression:
		return compressLZ4(data, lz4.Level9)

	case ZstdCompression:
		return compressZstd(data, dict)
	}
	return nil, fmt.Errorf("unsupported compression type: %s", t)
}

func compressLZ4(data []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, fmt.Errorf("lz4 apply level: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// compressZstd uses a raw-content dictionary (no zstd dictionary
// header), matching what Titan stores in the blob file dictionary
// block; frames do not embed a dictionary ID.
func compressZstd(data, dict []byte) ([]byte, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedDefault)}
	if len(dict) > 0 {
		opts = append(opts, zstd.WithEncoderDictRaw(0, dict))
	}
	encoder, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer func() { _ = encoder.Close() }()
	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses data without a dictionary.
func Decompress(t Type, data []byte) ([]byte, error) {
	return DecompressDict(t, data, nil)
}

// DecompressDict decompresses data, applying the raw-content dictionary
// for types that support one.
func DecompressDict(t Type, data, dict []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		return snappy.Decode(nil, data)

	case ZlibCompression:
		return decompressZlib(data)

	case LZ4Compression, LZ4HCCompression:
		r := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)

	case ZstdCompression:
		return decompressZstd(data, dict)
	}
	return nil, fmt.Errorf("unsupported compression type: %s", t)
}

// decompressZlib handles both framings RocksDB produces: raw deflate
// (windowBits = -14, the default) and headered zlib.
func decompressZlib(data []byte) ([]byte, error) {
	raw := flate.NewReader(bytes.NewReader(data))
	result, err := io.ReadAll(raw)
	_ = raw.Close()
	if err == nil {
		return result, nil
	}

	r, zlibErr := zlib.NewReader(bytes.NewReader(data))
	if zlibErr != nil {
		// The raw deflate error is the likelier diagnosis.
		return nil, fmt.Errorf("zlib decompress: raw deflate failed: %w", err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func decompressZstd(data, dict []byte) ([]byte, error) {
	var opts []zstd.DOption
	if len(dict) > 0 {
		opts = append(opts, zstd.WithDecoderDictRaw(0, dict))
	}
	decoder, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}

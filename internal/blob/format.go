// Package blob implements the Titan blob file format: the on-disk codec,
// per-file metadata, and the iterators used by garbage collection.
//
// Large values are stored out-of-line from the primary sorted index in
// append-only blob files. Each file is laid out as:
//
//	[header]
//	[record 1]
//	...
//	[record N]
//	[uncompression dictionary block + trailer]  (optional)
//	[meta index block + trailer]                (optional)
//	[footer]
//
// Header (8, 12 or 16 bytes by version):
//
//	Magic Number (4 bytes): 0x2be0a614
//	Version (4 bytes)
//	Flags (4 bytes, version >= 2): bit 0 = has uncompression dictionary
//	Block Size (4 bytes, version 3): 0 = no physical block alignment
//
// Record:
//
//	CRC32C (4 bytes): over the remaining header bytes plus the payload
//	Payload Length (4 bytes): 0 designates a punched hole
//	Compression Type (1 byte)
//	Payload: optionally compressed [varint key len | key | varint val len | value]
//
// Footer (32 bytes):
//
//	Meta Index Handle (zero-padded to 20 bytes): null handle = no meta index
//	Magic Number (8 bytes): 0x2be0a6148e39edc6
//	CRC32C (4 bytes): over the first 28 bytes
//
// All formats are bit-compatible with Titan; files written by either
// implementation are readable by the other.
//
// Reference: Titan (tikv/titan)
//   - src/blob_format.h
//   - src/blob_format.cc
package blob

import (
	"errors"
	"fmt"

	"github.com/aalhour/titanyard/internal/checksum"
	"github.com/aalhour/titanyard/internal/compression"
	"github.com/aalhour/titanyard/internal/encoding"
)

const (
	// HeaderMagicNumber is the first 32 bits of the blob file magic number.
	HeaderMagicNumber uint32 = 0x2be0a614

	// FooterMagicNumber is the first 64 bits of
	// $(echo titandb/blob | sha1sum).
	FooterMagicNumber uint64 = 0x2be0a6148e39edc6

	// Version1 blob files carry only the magic number and version.
	Version1 uint32 = 1
	// Version2 adds the flags field (uncompression dictionary support).
	Version2 uint32 = 2
	// Version3 adds the block size field (hole-punch support).
	Version3 uint32 = 3

	// V1EncodedLength is the header length of a version 1 file.
	V1EncodedLength = 8
	// V2EncodedLength is the header length of a version 2 file.
	V2EncodedLength = V1EncodedLength + 4
	// V3EncodedLength is the header length of a version 3 file.
	V3EncodedLength = V2EncodedLength + 4

	// HasUncompressionDictionary flags that all records are compressed
	// against a shared dictionary stored in the dictionary meta block.
	HasUncompressionDictionary uint32 = 1 << 0

	// RecordHeaderSize is the fixed prefix of every on-disk record:
	// crc (4) + payload length (4) + compression type (1).
	RecordHeaderSize = 9

	// BlockHandleMaxEncodedLength is two maximal varint64s.
	BlockHandleMaxEncodedLength = 10 + 10

	// FooterEncodedLength is the fixed footer length: padded handle +
	// magic + crc.
	FooterEncodedLength = BlockHandleMaxEncodedLength + 8 + 4

	// BlockTrailerSize is the trailer after the dictionary and meta index
	// blocks: compression type (1) + checksum (4).
	BlockTrailerSize = 5

	// UncompressionDictBlockName is the meta index key of the dictionary
	// block.
	UncompressionDictBlockName = "titandb.uncompression_dict"
)

var (
	// ErrCorruption indicates a malformed blob file structure. It is never
	// auto-repaired; the error is sticky on iterators.
	ErrCorruption = errors.New("blob: corruption")

	// ErrOutOfBound indicates a seek target past the end of the record
	// region.
	ErrOutOfBound = errors.New("blob: out of bound")

	// ErrNoValidIterator is the benign "nothing to merge" signal returned
	// when no source file yields a first record.
	ErrNoValidIterator = errors.New("blob: no iterator is valid")
)

// BlockHandle points to a block within a blob file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// IsNull reports whether the handle points at nothing.
func (h BlockHandle) IsNull() bool {
	return h.Offset == 0 && h.Size == 0
}

// EncodeTo appends the varint encoding of the handle to dst.
func (h BlockHandle) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendVarint64(dst, h.Offset)
	return encoding.AppendVarint64(dst, h.Size)
}

// DecodeFrom reads a handle from s.
func (h *BlockHandle) DecodeFrom(s *encoding.Slice) error {
	offset, ok := s.GetVarint64()
	if !ok {
		return fmt.Errorf("%w: bad block handle", ErrCorruption)
	}
	size, ok := s.GetVarint64()
	if !ok {
		return fmt.Errorf("%w: bad block handle", ErrCorruption)
	}
	h.Offset = offset
	h.Size = size
	return nil
}

// BlobHandle points to a record within a blob file: the record's starting
// offset and its total on-disk length including the record header.
type BlobHandle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo appends the varint encoding of the handle to dst.
func (h BlobHandle) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendVarint64(dst, h.Offset)
	return encoding.AppendVarint64(dst, h.Size)
}

// DecodeFrom reads a handle from s.
func (h *BlobHandle) DecodeFrom(s *encoding.Slice) error {
	offset, ok := s.GetVarint64()
	if !ok {
		return fmt.Errorf("%w: bad blob handle", ErrCorruption)
	}
	size, ok := s.GetVarint64()
	if !ok {
		return fmt.Errorf("%w: bad blob handle", ErrCorruption)
	}
	h.Offset = offset
	h.Size = size
	return nil
}

// blobIndexType tags the encoding of a BlobIndex so the host can evolve
// the pointer format.
const blobIndexType byte = 1

// BlobIndex is the pointer a host engine stores in place of a large
// value: the blob file number and the record's position within it.
type BlobIndex struct {
	FileNumber uint64
	Handle     BlobHandle
}

// EncodeTo appends the encoded index to dst.
func (i BlobIndex) EncodeTo(dst []byte) []byte {
	dst = append(dst, blobIndexType)
	dst = encoding.AppendVarint64(dst, i.FileNumber)
	return i.Handle.EncodeTo(dst)
}

// DecodeFrom parses an index from s.
func (i *BlobIndex) DecodeFrom(s *encoding.Slice) error {
	tag, ok := s.GetBytes(1)
	if !ok || tag[0] != blobIndexType {
		return fmt.Errorf("%w: bad blob index type", ErrCorruption)
	}
	fileNumber, ok := s.GetVarint64()
	if !ok {
		return fmt.Errorf("%w: bad blob index", ErrCorruption)
	}
	i.FileNumber = fileNumber
	return i.Handle.DecodeFrom(s)
}

// BlobFileHeader is the fixed-length prefix of a blob file, parsed once at
// iterator init.
type BlobFileHeader struct {
	Version   uint32
	Flags     uint32
	BlockSize uint32
}

// Size returns the encoded header length for the header's version.
func (h *BlobFileHeader) Size() uint64 {
	switch h.Version {
	case Version1:
		return V1EncodedLength
	case Version2:
		return V2EncodedLength
	default:
		return V3EncodedLength
	}
}

// EncodeTo appends the encoded header to dst.
func (h *BlobFileHeader) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendFixed32(dst, HeaderMagicNumber)
	dst = encoding.AppendFixed32(dst, h.Version)
	if h.Version >= Version2 {
		dst = encoding.AppendFixed32(dst, h.Flags)
	}
	if h.Version >= Version3 {
		dst = encoding.AppendFixed32(dst, h.BlockSize)
	}
	return dst
}

// DecodeFrom parses a header from the start of data. Trailing bytes beyond
// the version's encoded length are ignored, so callers may pass the first
// V3EncodedLength bytes of any file.
func (h *BlobFileHeader) DecodeFrom(data []byte) error {
	s := encoding.NewSlice(data)
	magic, ok := s.GetFixed32()
	if !ok || magic != HeaderMagicNumber {
		return fmt.Errorf("%w: blob file header magic number missing or mismatched", ErrCorruption)
	}
	version, ok := s.GetFixed32()
	if !ok || version < Version1 || version > Version3 {
		return fmt.Errorf("%w: blob file header version missing or invalid", ErrCorruption)
	}
	h.Version = version
	h.Flags = 0
	h.BlockSize = 0
	if version >= Version2 {
		flags, ok := s.GetFixed32()
		if !ok || flags&^HasUncompressionDictionary != 0 {
			return fmt.Errorf("%w: blob file header flags missing or invalid", ErrCorruption)
		}
		h.Flags = flags
	}
	if version >= Version3 {
		blockSize, ok := s.GetFixed32()
		if !ok {
			return fmt.Errorf("%w: blob file header block size missing", ErrCorruption)
		}
		h.BlockSize = blockSize
	}
	return nil
}

// BlobFileFooter is the fixed-length suffix of a blob file. A null meta
// index handle means the file has no meta index block.
type BlobFileFooter struct {
	MetaIndexHandle BlockHandle
}

// EncodeTo appends the 32-byte encoded footer to dst.
func (f *BlobFileFooter) EncodeTo(dst []byte) []byte {
	start := len(dst)
	dst = f.MetaIndexHandle.EncodeTo(dst)
	// Zero-pad the handle region to its maximal length.
	for len(dst)-start < BlockHandleMaxEncodedLength {
		dst = append(dst, 0)
	}
	dst = encoding.AppendFixed64(dst, FooterMagicNumber)
	crc := checksum.Value(dst[start:])
	return encoding.AppendFixed32(dst, crc)
}

// DecodeFrom parses a footer from exactly the last FooterEncodedLength
// bytes of a file.
func (f *BlobFileFooter) DecodeFrom(data []byte) error {
	if len(data) != FooterEncodedLength {
		return fmt.Errorf("%w: blob file footer length %d", ErrCorruption, len(data))
	}
	s := encoding.NewSlice(data)
	if err := f.MetaIndexHandle.DecodeFrom(s); err != nil {
		return fmt.Errorf("%w: blob file footer handle", ErrCorruption)
	}
	magic := encoding.DecodeFixed64(data[BlockHandleMaxEncodedLength:])
	if magic != FooterMagicNumber {
		return fmt.Errorf("%w: blob file footer magic number", ErrCorruption)
	}
	stored := encoding.DecodeFixed32(data[FooterEncodedLength-4:])
	if checksum.Value(data[:FooterEncodedLength-4]) != stored {
		return fmt.Errorf("%w: blob file footer checksum", ErrCorruption)
	}
	return nil
}

// BlobRecord is a single key/value pair. Decoded records are views into
// the decoder's buffer, valid only until the next decode.
type BlobRecord struct {
	Key   []byte
	Value []byte
}

// EncodeTo appends the record body (length-prefixed key and value) to dst.
func (r *BlobRecord) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendLengthPrefixedSlice(dst, r.Key)
	return encoding.AppendLengthPrefixedSlice(dst, r.Value)
}

// DecodeFrom parses a record body. The whole input must be consumed.
func (r *BlobRecord) DecodeFrom(data []byte) error {
	s := encoding.NewSlice(data)
	key, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return fmt.Errorf("%w: blob record key", ErrCorruption)
	}
	value, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return fmt.Errorf("%w: blob record value", ErrCorruption)
	}
	if s.Remaining() != 0 {
		return fmt.Errorf("%w: blob record trailing bytes", ErrCorruption)
	}
	r.Key = key
	r.Value = value
	return nil
}

// PeekRecordSize returns the payload length subfield of an encoded record
// header without decoding the rest. A zero length designates a hole-punch
// marker. Separately named so the hole-skipping path is testable in
// isolation.
func PeekRecordSize(header []byte) (uint32, error) {
	if len(header) < 8 {
		return 0, fmt.Errorf("%w: blob record header too short", ErrCorruption)
	}
	return encoding.DecodeFixed32(header[4:8]), nil
}

// BlobEncoder encodes records into the on-disk representation: a 9-byte
// header plus an optionally compressed payload. The encoder owns its
// buffers; Header and Record views are valid until the next encode.
type BlobEncoder struct {
	header      [RecordHeaderSize]byte
	recordBuf   []byte
	record      []byte
	compression compression.Type
	dict        []byte
}

// NewBlobEncoder creates an encoder that compresses payloads with t.
func NewBlobEncoder(t compression.Type) *BlobEncoder {
	return &BlobEncoder{compression: t}
}

// SetCompressionDict sets the shared dictionary applied to every payload.
func (e *BlobEncoder) SetCompressionDict(dict []byte) {
	e.dict = dict
}

// EncodeRecord encodes a key/value record.
func (e *BlobEncoder) EncodeRecord(rec *BlobRecord) {
	e.recordBuf = rec.EncodeTo(e.recordBuf[:0])
	e.EncodeSlice(e.recordBuf)
}

// EncodeSlice encodes an already serialized record body. If compression
// fails or does not shrink the payload the record is stored uncompressed,
// so every record remains individually decodable by compression type tag.
func (e *BlobEncoder) EncodeSlice(body []byte) {
	payload := body
	tag := compression.NoCompression
	if e.compression != compression.NoCompression {
		compressed, err := compression.CompressDict(e.compression, body, e.dict)
		if err == nil && len(compressed) < len(body) {
			payload = compressed
			tag = e.compression
		}
	}
	e.record = payload

	encoding.EncodeFixed32(e.header[4:], uint32(len(payload)))
	e.header[8] = byte(tag)
	crc := checksum.Value(e.header[4:RecordHeaderSize])
	crc = checksum.Extend(crc, payload)
	encoding.EncodeFixed32(e.header[:], crc)
}

// Header returns the encoded 9-byte record header.
func (e *BlobEncoder) Header() []byte {
	return e.header[:]
}

// Record returns the encoded payload.
func (e *BlobEncoder) Record() []byte {
	return e.record
}

// EncodedSize returns the total on-disk size of the last encoded record.
func (e *BlobEncoder) EncodedSize() int {
	return RecordHeaderSize + len(e.record)
}

// BlobDecoder decodes on-disk records. All methods are pure: I/O is
// performed by the caller, which decouples read strategy from decode
// logic and allows header-only peeks.
type BlobDecoder struct {
	crc         uint32
	headerCRC   uint32
	recordSize  uint32
	compression compression.Type
	dict        []byte
	buf         []byte
}

// NewBlobDecoder creates a decoder.
func NewBlobDecoder() *BlobDecoder {
	return &BlobDecoder{}
}

// SetUncompressionDict sets the shared dictionary used to decompress
// payloads. The dictionary is loaded once per file and shared by all of
// its records.
func (d *BlobDecoder) SetUncompressionDict(dict []byte) {
	d.dict = dict
}

// DecodeHeader parses a 9-byte record header. The checksum cannot be
// verified yet (it also covers the payload); DecodeRecord does that.
func (d *BlobDecoder) DecodeHeader(src []byte) error {
	if len(src) < RecordHeaderSize {
		return fmt.Errorf("%w: blob record header too short", ErrCorruption)
	}
	d.crc = encoding.DecodeFixed32(src)
	d.headerCRC = checksum.Value(src[4:RecordHeaderSize])
	d.recordSize = encoding.DecodeFixed32(src[4:])
	d.compression = compression.Type(src[8])
	if !d.compression.IsSupported() {
		return fmt.Errorf("%w: blob record compression type %d", ErrCorruption, src[8])
	}
	return nil
}

// RecordSize returns the payload length of the last decoded header.
func (d *BlobDecoder) RecordSize() uint32 {
	return d.recordSize
}

// DecodeRecord verifies the checksum of src against the last decoded
// header, decompresses the payload if needed and splits it into rec.
// REQUIRES: len(src) == RecordSize().
func (d *BlobDecoder) DecodeRecord(src []byte, rec *BlobRecord) error {
	if uint32(len(src)) != d.recordSize {
		return fmt.Errorf("%w: blob record payload length %d, want %d", ErrCorruption, len(src), d.recordSize)
	}
	crc := checksum.Extend(d.headerCRC, src)
	if crc != d.crc {
		return fmt.Errorf("%w: blob record checksum mismatch", ErrCorruption)
	}
	if d.compression == compression.NoCompression {
		return rec.DecodeFrom(src)
	}
	decompressed, err := compression.DecompressDict(d.compression, src, d.dict)
	if err != nil {
		return fmt.Errorf("%w: blob record decompress: %v", ErrCorruption, err)
	}
	d.buf = decompressed
	return rec.DecodeFrom(d.buf)
}

// AppendBlockTrailer appends the 5-byte trailer that follows a meta block:
// the checksum type byte and a checksum of the block contents plus that
// byte. The trailer names its own checksum type so readers need no
// out-of-band configuration to verify it.
func AppendBlockTrailer(dst []byte, contents []byte, t checksum.Type) []byte {
	dst = append(dst, byte(t))
	sum := checksum.ComputeChecksum(t, contents, byte(t))
	return encoding.AppendFixed32(dst, sum)
}

// VerifyBlockTrailer checks a meta block against its 5-byte trailer.
func VerifyBlockTrailer(contents, trailer []byte) error {
	if len(trailer) != BlockTrailerSize {
		return fmt.Errorf("%w: block trailer length %d", ErrCorruption, len(trailer))
	}
	t := checksum.Type(trailer[0])
	if !t.IsSupported() {
		return fmt.Errorf("%w: block trailer checksum type %d", ErrCorruption, trailer[0])
	}
	stored := encoding.DecodeFixed32(trailer[1:])
	if checksum.ComputeChecksum(t, contents, trailer[0]) != stored {
		return fmt.Errorf("%w: block trailer checksum mismatch", ErrCorruption)
	}
	return nil
}

// MetaIndexBuilder builds the meta index block: a sequence of
// (varint name length | name | block handle) entries.
type MetaIndexBuilder struct {
	buf []byte
}

// Add registers a meta block under the given name.
func (b *MetaIndexBuilder) Add(name string, handle BlockHandle) {
	b.buf = encoding.AppendLengthPrefixedSlice(b.buf, []byte(name))
	b.buf = handle.EncodeTo(b.buf)
}

// Finish returns the block contents.
func (b *MetaIndexBuilder) Finish() []byte {
	return b.buf
}

// ParseMetaIndex decodes a meta index block into a name-to-handle map.
func ParseMetaIndex(contents []byte) (map[string]BlockHandle, error) {
	blocks := make(map[string]BlockHandle)
	s := encoding.NewSlice(contents)
	for s.Remaining() > 0 {
		name, ok := s.GetLengthPrefixedSlice()
		if !ok {
			return nil, fmt.Errorf("%w: meta index entry name", ErrCorruption)
		}
		var handle BlockHandle
		if err := handle.DecodeFrom(s); err != nil {
			return nil, fmt.Errorf("%w: meta index entry handle", ErrCorruption)
		}
		blocks[string(name)] = handle
	}
	return blocks, nil
}

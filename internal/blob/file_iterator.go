// file_iterator.go implements BlobFileIterator, a forward scan over the
// live records of a single blob file. It is only used by garbage
// collection, so reads are prefetched aggressively with a doubling
// read-ahead window.
//
// Reference: Titan (tikv/titan)
//   - src/blob_file_iterator.h
//   - src/blob_file_iterator.cc
package blob

import (
	"fmt"

	"github.com/aalhour/titanyard/internal/options"
	"github.com/aalhour/titanyard/internal/vfs"
)

const (
	minReadaheadSize uint64 = 4 << 10
	maxReadaheadSize uint64 = 256 << 10
	defaultPageSize  uint64 = 4 << 10
)

// BlobFileIterator iterates the records of one blob file in file order.
//
// The iterator is initialized lazily on the first SeekToFirst or
// IterateForPrev. Errors are sticky: once a read or decode fails the
// iterator stays invalid until the next seek. Punched holes (records
// whose size subfield is zero) are skipped transparently, block by
// block.
type BlobFileIterator struct {
	file       vfs.RandomAccessFile
	fileNumber uint64
	fileSize   uint64
	cfOptions  *options.CFOptions

	init   bool
	status error
	valid  bool

	headerSize      uint64
	blockSize       uint64
	endOfBlobRecord uint64

	iterateOffset   uint64
	curRecordOffset uint64
	curRecordSize   uint64

	decoder   BlobDecoder
	record    BlobRecord
	headerBuf [RecordHeaderSize]byte
	buffer    []byte
	dict      []byte

	readaheadBegin uint64
	readaheadEnd   uint64
	readaheadSize  uint64
}

// NewBlobFileIterator creates an iterator over one blob file. The
// iterator takes ownership of file and closes it on Close.
func NewBlobFileIterator(file vfs.RandomAccessFile, fileNumber, fileSize uint64, cfOptions *options.CFOptions) *BlobFileIterator {
	return &BlobFileIterator{
		file:          file,
		fileNumber:    fileNumber,
		fileSize:      fileSize,
		cfOptions:     cfOptions,
		readaheadSize: minReadaheadSize,
	}
}

// Close releases the underlying file.
func (it *BlobFileIterator) Close() error {
	return it.file.Close()
}

// FileNumber returns the number of the file being iterated.
func (it *BlobFileIterator) FileNumber() uint64 { return it.fileNumber }

// Valid reports whether the iterator is positioned at a live record.
func (it *BlobFileIterator) Valid() bool { return it.valid && it.status == nil }

// Err returns the sticky iterator error, nil if none.
func (it *BlobFileIterator) Err() error { return it.status }

// Key returns the current record's key, valid until the next advance.
func (it *BlobFileIterator) Key() []byte { return it.record.Key }

// Value returns the current record's value, valid until the next advance.
func (it *BlobFileIterator) Value() []byte { return it.record.Value }

// GetBlobIndex returns the pointer to the current record, used by GC to
// match records against the host engine's stored pointers.
func (it *BlobFileIterator) GetBlobIndex() BlobIndex {
	return BlobIndex{
		FileNumber: it.fileNumber,
		Handle: BlobHandle{
			Offset: it.curRecordOffset,
			Size:   it.curRecordSize,
		},
	}
}

// doInit reads the file header and footer, determines the end of the
// record region and loads the uncompression dictionary if the file has
// one.
func (it *BlobFileIterator) doInit() error {
	if it.fileSize < V1EncodedLength+FooterEncodedLength {
		it.status = fmt.Errorf("%w: blob file %d size %d too small", ErrCorruption, it.fileNumber, it.fileSize)
		return it.status
	}

	headerLen := uint64(V3EncodedLength)
	if it.fileSize < headerLen+FooterEncodedLength {
		headerLen = it.fileSize - FooterEncodedLength
	}
	headerBuf := make([]byte, headerLen)
	if err := it.readAt(headerBuf, 0); err != nil {
		it.status = err
		return it.status
	}
	var header BlobFileHeader
	if err := header.DecodeFrom(headerBuf); err != nil {
		it.status = err
		return it.status
	}
	it.headerSize = header.Size()
	it.blockSize = uint64(header.BlockSize)

	footerBuf := make([]byte, FooterEncodedLength)
	if err := it.readAt(footerBuf, it.fileSize-FooterEncodedLength); err != nil {
		it.status = err
		return it.status
	}
	var footer BlobFileFooter
	if err := footer.DecodeFrom(footerBuf); err != nil {
		it.status = err
		return it.status
	}

	it.endOfBlobRecord = it.fileSize - FooterEncodedLength
	if !footer.MetaIndexHandle.IsNull() {
		it.endOfBlobRecord -= footer.MetaIndexHandle.Size + BlockTrailerSize
	}
	if header.Flags&HasUncompressionDictionary != 0 {
		dictLen, err := it.initUncompressionDict(&footer)
		if err != nil {
			it.status = err
			return it.status
		}
		it.endOfBlobRecord -= dictLen + BlockTrailerSize
	}

	if it.endOfBlobRecord <= V1EncodedLength || it.endOfBlobRecord > it.fileSize {
		it.status = fmt.Errorf("%w: blob file %d record region end %d out of range", ErrCorruption, it.fileNumber, it.endOfBlobRecord)
		return it.status
	}

	it.init = true
	return nil
}

// initUncompressionDict locates the dictionary block through the meta
// index, verifies both block trailers and hands the dictionary to the
// decoder. Returns the raw dictionary length.
func (it *BlobFileIterator) initUncompressionDict(footer *BlobFileFooter) (uint64, error) {
	handle := footer.MetaIndexHandle
	if handle.IsNull() {
		return 0, fmt.Errorf("%w: blob file %d has dictionary flag but no meta index", ErrCorruption, it.fileNumber)
	}
	metaIndex, err := it.readMetaBlock(handle.Offset, handle.Size)
	if err != nil {
		return 0, err
	}
	blocks, err := ParseMetaIndex(metaIndex)
	if err != nil {
		return 0, err
	}
	dictHandle, ok := blocks[UncompressionDictBlockName]
	if !ok {
		return 0, fmt.Errorf("%w: blob file %d has no %s block", ErrCorruption, it.fileNumber, UncompressionDictBlockName)
	}
	dict, err := it.readMetaBlock(dictHandle.Offset, dictHandle.Size)
	if err != nil {
		return 0, err
	}
	it.dict = dict
	it.decoder.SetUncompressionDict(dict)
	return uint64(len(dict)), nil
}

// readMetaBlock reads a meta block and verifies its trailer.
func (it *BlobFileIterator) readMetaBlock(offset, size uint64) ([]byte, error) {
	if offset+size+BlockTrailerSize > it.fileSize {
		return nil, fmt.Errorf("%w: blob file %d meta block at %d out of range", ErrCorruption, it.fileNumber, offset)
	}
	buf := make([]byte, size+BlockTrailerSize)
	if err := it.readAt(buf, offset); err != nil {
		return nil, err
	}
	contents, trailer := buf[:size], buf[size:]
	if err := VerifyBlockTrailer(contents, trailer); err != nil {
		return nil, err
	}
	return contents, nil
}

// SeekToFirst positions the iterator at the first live record.
func (it *BlobFileIterator) SeekToFirst() {
	if !it.init && it.doInit() != nil {
		return
	}
	it.status = nil
	it.iterateOffset = it.headerSize
	if it.blockSize != 0 {
		it.iterateOffset = roundUp(it.iterateOffset, it.blockSize)
	}
	it.prefetchAndGet()
}

// Next advances to the next live record. The iterator must have been
// positioned by a prior SeekToFirst or IterateForPrev; after
// IterateForPrev it is Next that materializes the record at the sought
// position.
func (it *BlobFileIterator) Next() {
	if !it.init || it.status != nil {
		return
	}
	it.prefetchAndGet()
}

// IterateForPrev positions the iterator just before the record containing
// offset: the next call to Next returns that record. If offset is at or
// past the end of the record region the status is ErrOutOfBound.
//
// The scan decodes only record headers, so it walks over punched holes
// and corrupt payloads alike; payload verification happens on Next.
func (it *BlobFileIterator) IterateForPrev(offset uint64) {
	if !it.init && it.doInit() != nil {
		return
	}
	it.status = nil

	if offset >= it.endOfBlobRecord {
		it.iterateOffset = offset
		it.status = ErrOutOfBound
		return
	}

	var totalLength uint64
	it.iterateOffset = it.headerSize
	if it.blockSize != 0 {
		it.iterateOffset = roundUp(it.iterateOffset, it.blockSize)
	}
	for it.iterateOffset < offset {
		if err := it.readAt(it.headerBuf[:], it.iterateOffset); err != nil {
			it.status = err
			return
		}
		if err := it.decoder.DecodeHeader(it.headerBuf[:]); err != nil {
			it.status = err
			return
		}
		totalLength = RecordHeaderSize + uint64(it.decoder.RecordSize())
		if it.blockSize != 0 {
			totalLength = roundUp(totalLength, it.blockSize)
		}
		it.iterateOffset += totalLength
	}

	// The scan overshot into the middle of a record; step back to its
	// start.
	if it.iterateOffset > offset {
		it.iterateOffset -= totalLength
	}
	it.valid = false
}

// getBlobRecord reads and decodes the record at iterateOffset. Returns
// true if a live record was materialized. A punched hole returns false
// with a nil status; the caller advances past it.
func (it *BlobFileIterator) getBlobRecord() bool {
	if err := it.readAt(it.headerBuf[:], it.iterateOffset); err != nil {
		it.status = err
		return false
	}

	// A zero size subfield marks a punched hole, not a record; there is
	// nothing further to decode.
	size, err := PeekRecordSize(it.headerBuf[:])
	if err != nil {
		it.status = err
		return false
	}
	if size == 0 {
		return false
	}

	if err := it.decoder.DecodeHeader(it.headerBuf[:]); err != nil {
		it.status = err
		return false
	}
	recordSize := uint64(it.decoder.RecordSize())
	if it.iterateOffset+RecordHeaderSize+recordSize > it.endOfBlobRecord {
		it.status = fmt.Errorf("%w: blob file %d record at %d runs past record region", ErrCorruption, it.fileNumber, it.iterateOffset)
		return false
	}

	if uint64(cap(it.buffer)) < recordSize {
		it.buffer = make([]byte, recordSize)
	}
	it.buffer = it.buffer[:recordSize]
	if err := it.readAt(it.buffer, it.iterateOffset+RecordHeaderSize); err != nil {
		it.status = err
		return false
	}
	if err := it.decoder.DecodeRecord(it.buffer, &it.record); err != nil {
		it.status = err
		return false
	}

	it.curRecordOffset = it.iterateOffset
	it.curRecordSize = RecordHeaderSize + recordSize
	it.iterateOffset += it.curRecordSize
	if it.blockSize != 0 {
		it.iterateOffset = roundUp(it.iterateOffset, it.blockSize)
	}
	it.valid = true
	return true
}

// prefetchAndGet keeps a doubling read-ahead window ahead of the cursor
// and materializes the next live record, skipping punched holes block by
// block.
func (it *BlobFileIterator) prefetchAndGet() {
	for it.iterateOffset < it.endOfBlobRecord {
		if it.readaheadBegin > it.iterateOffset || it.readaheadEnd < it.iterateOffset {
			// The cursor left the window; restart it page-aligned at the
			// cursor.
			it.readaheadBegin = it.iterateOffset &^ (defaultPageSize - 1)
			it.readaheadEnd = it.readaheadBegin
			it.readaheadSize = minReadaheadSize
		}
		target := it.iterateOffset + RecordHeaderSize + it.cfOptions.MinBlobSize
		if it.readaheadEnd <= target {
			for it.readaheadEnd+it.readaheadSize <= target && it.readaheadSize < maxReadaheadSize {
				it.readaheadSize <<= 1
			}
			// Best-effort hint; iteration is correct without it.
			_ = it.file.Prefetch(int64(it.readaheadEnd), int64(it.readaheadSize))
			it.readaheadEnd += it.readaheadSize
			it.readaheadSize = min(maxReadaheadSize, it.readaheadSize<<1)
		}

		live := it.getBlobRecord()

		if it.readaheadEnd < it.iterateOffset {
			it.readaheadEnd = it.iterateOffset
		}

		if live || it.status != nil {
			return
		}
		// Punched hole: step over one block and retry. A hole in an
		// unaligned file cannot be stepped over and means the file is
		// corrupt.
		if it.blockSize == 0 {
			it.status = fmt.Errorf("%w: blob file %d zero-size record at %d", ErrCorruption, it.fileNumber, it.iterateOffset)
			return
		}
		it.iterateOffset += it.blockSize
	}
	it.valid = false
}

// readAt fills buf from the file at offset.
func (it *BlobFileIterator) readAt(buf []byte, offset uint64) error {
	if _, err := it.file.ReadAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("blob: file %d: read %d bytes at offset %d: %w", it.fileNumber, len(buf), offset, err)
	}
	return nil
}

// roundUp rounds n up to the next multiple of m.
func roundUp(n, m uint64) uint64 {
	return (n + m - 1) / m * m
}

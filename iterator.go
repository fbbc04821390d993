package titanyard

// iterator.go re-exports the blob file readers used to inspect blob
// files and to relocate live values during GC.
//
// Reference: Titan (tikv/titan) src/blob_file_iterator.h

import (
	"github.com/aalhour/titanyard/internal/blob"
)

// BlobFileIterator reads the records of one blob file in offset order.
// It is not safe for concurrent use.
type BlobFileIterator = blob.BlobFileIterator

// BlobFileMergeIterator merges several blob file iterators into one
// key-ordered stream.
type BlobFileMergeIterator = blob.BlobFileMergeIterator

// BlobIndex locates one value inside a blob file. The host engine
// stores the encoded form in place of the value.
type BlobIndex = blob.BlobIndex

// BlobHandle addresses a byte range inside a blob file.
type BlobHandle = blob.BlobHandle

// Comparator orders keys the way the host engine does.
type Comparator = blob.Comparator

// BytewiseComparator orders keys lexicographically.
func BytewiseComparator(a, b []byte) int {
	return blob.BytewiseComparator(a, b)
}

// NewBlobFileIterator creates an iterator over one blob file. fileSize
// must be the exact size of the file; cfOptions supplies the checksum
// and compression settings the file was written with.
func NewBlobFileIterator(file RandomAccessFile, fileNumber, fileSize uint64, cfOptions *CFOptions) *BlobFileIterator {
	return blob.NewBlobFileIterator(file, fileNumber, fileSize, cfOptions)
}

// NewBlobFileMergeIterator merges the given iterators into one stream
// ordered by comparator. A nil comparator means bytewise order.
func NewBlobFileMergeIterator(iterators []*BlobFileIterator, comparator Comparator) *BlobFileMergeIterator {
	return blob.NewBlobFileMergeIterator(iterators, comparator)
}

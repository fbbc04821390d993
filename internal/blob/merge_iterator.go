// merge_iterator.go implements BlobFileMergeIterator, a k-way merge over
// the live records of several blob files, used by GC to rewrite a batch
// of input files in key order.
//
// Reference: Titan (tikv/titan)
//   - src/blob_file_iterator.h (BlobFileMergeIterator)
//   - src/blob_file_iterator.cc
package blob

import (
	"bytes"
	"container/heap"
)

// Comparator orders keys the way the host engine does. It returns a
// negative, zero or positive value as a sorts before, equal to or after
// b.
type Comparator func(a, b []byte) int

// BytewiseComparator orders keys lexicographically.
func BytewiseComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}

// BlobFileMergeIterator merges multiple blob file iterators into one
// key-ordered stream.
//
// The merge does not deduplicate: when two files contain the same key
// the record from the file with the higher number is yielded first, so
// callers that keep only the first occurrence keep the most recent
// write.
type BlobFileMergeIterator struct {
	iterators  []*BlobFileIterator
	comparator Comparator
	minHeap    *blobIterHeap
	current    int // index of current iterator in iterators, -1 if exhausted
	status     error
}

// NewBlobFileMergeIterator creates a merge iterator over the given blob
// file iterators. A nil comparator defaults to bytewise order.
func NewBlobFileMergeIterator(iterators []*BlobFileIterator, comparator Comparator) *BlobFileMergeIterator {
	if comparator == nil {
		comparator = BytewiseComparator
	}
	mi := &BlobFileMergeIterator{
		iterators:  iterators,
		comparator: comparator,
		current:    -1,
	}
	mi.minHeap = &blobIterHeap{
		items: make([]mergeHeapItem, 0, len(iterators)),
		cmp:   comparator,
	}
	return mi
}

// Close releases all child iterators.
func (mi *BlobFileMergeIterator) Close() error {
	var firstErr error
	for _, iter := range mi.iterators {
		if err := iter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Valid reports whether the iterator is positioned at a record and no
// source has failed.
func (mi *BlobFileMergeIterator) Valid() bool {
	if mi.current < 0 {
		return false
	}
	if mi.Err() != nil {
		return false
	}
	return mi.iterators[mi.current].Valid()
}

// Err returns the merge error if any, otherwise the first child error.
func (mi *BlobFileMergeIterator) Err() error {
	if mi.status != nil {
		return mi.status
	}
	for _, iter := range mi.iterators {
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

// SeekToFirst positions the iterator at the smallest key across all
// files. If no file yields a record the status is ErrNoValidIterator,
// which callers treat as an empty input set rather than a failure.
func (mi *BlobFileMergeIterator) SeekToFirst() {
	mi.status = nil
	mi.current = -1
	mi.minHeap.items = mi.minHeap.items[:0]

	for i, iter := range mi.iterators {
		iter.SeekToFirst()
		if iter.Err() == nil && iter.Valid() {
			mi.minHeap.items = append(mi.minHeap.items, mergeHeapItem{
				index:      i,
				key:        iter.Key(),
				fileNumber: iter.FileNumber(),
			})
		}
	}

	heap.Init(mi.minHeap)
	if mi.minHeap.Len() > 0 {
		mi.popCurrent()
	} else {
		mi.status = ErrNoValidIterator
	}
}

// Next advances to the next record in merge order.
// REQUIRES: Valid().
func (mi *BlobFileMergeIterator) Next() {
	if !mi.Valid() {
		return
	}

	cur := mi.iterators[mi.current]
	cur.Next()
	if cur.Err() == nil && cur.Valid() {
		heap.Push(mi.minHeap, mergeHeapItem{
			index:      mi.current,
			key:        cur.Key(),
			fileNumber: cur.FileNumber(),
		})
	}

	if mi.minHeap.Len() > 0 {
		mi.popCurrent()
	} else {
		mi.current = -1
	}
}

// Key returns the current record's key.
func (mi *BlobFileMergeIterator) Key() []byte {
	if mi.current < 0 {
		return nil
	}
	return mi.iterators[mi.current].Key()
}

// Value returns the current record's value.
func (mi *BlobFileMergeIterator) Value() []byte {
	if mi.current < 0 {
		return nil
	}
	return mi.iterators[mi.current].Value()
}

// GetBlobIndex returns the pointer to the current record.
func (mi *BlobFileMergeIterator) GetBlobIndex() BlobIndex {
	if mi.current < 0 {
		return BlobIndex{}
	}
	return mi.iterators[mi.current].GetBlobIndex()
}

// popCurrent moves the top of the heap into current.
func (mi *BlobFileMergeIterator) popCurrent() {
	item, ok := heap.Pop(mi.minHeap).(mergeHeapItem)
	if !ok {
		mi.current = -1
		return
	}
	mi.current = item.index
}

// -----------------------------------------------------------------------------
// Min-heap over source iterators
// -----------------------------------------------------------------------------

type mergeHeapItem struct {
	index      int    // index into iterators slice
	key        []byte // current key for this iterator
	fileNumber uint64
}

type blobIterHeap struct {
	items []mergeHeapItem
	cmp   Comparator
}

func (h *blobIterHeap) Len() int { return len(h.items) }

func (h *blobIterHeap) Less(i, j int) bool {
	ret := h.cmp(h.items[i].key, h.items[j].key)
	if ret != 0 {
		return ret < 0
	}
	// Equal keys from different files: the file with the newer (larger)
	// number comes first.
	return h.items[i].fileNumber > h.items[j].fileNumber
}

func (h *blobIterHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *blobIterHeap) Push(x any) {
	item, ok := x.(mergeHeapItem)
	if !ok {
		return
	}
	h.items = append(h.items, item)
}

func (h *blobIterHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

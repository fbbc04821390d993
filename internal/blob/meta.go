// meta.go implements BlobFileMeta, the in-memory descriptor of one blob
// file: persistent fields carried through the manifest, plus runtime
// state (file state machine, live data size) rebuilt after restart.
//
// Reference: Titan (tikv/titan)
//   - src/blob_format.h (BlobFileMeta)
//   - src/blob_format.cc
package blob

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/aalhour/titanyard/internal/encoding"
)

// ErrInvalidStateTransition indicates a file state event that is not legal
// from the file's current state.
var ErrInvalidStateTransition = errors.New("blob: invalid file state transition")

// FileState is the lifecycle state of a blob file.
type FileState int32

const (
	// FileStateInit is the state of a freshly constructed meta; no live
	// file is ever at this state.
	FileStateInit FileState = iota
	// FileStateNormal files are live and eligible for GC selection.
	FileStateNormal
	// FileStatePendingGC files are GC outputs waiting for their GC job to
	// finish.
	FileStatePendingGC
	// FileStateBeingGC files are inputs of an in-flight GC job.
	FileStateBeingGC
	// FileStateObsolete files have been logically removed and wait for
	// physical deletion.
	FileStateObsolete
)

// String returns the state name.
func (s FileState) String() string {
	switch s {
	case FileStateInit:
		return "Init"
	case FileStateNormal:
		return "Normal"
	case FileStatePendingGC:
		return "PendingGC"
	case FileStateBeingGC:
		return "BeingGC"
	case FileStateObsolete:
		return "Obsolete"
	default:
		return "Unknown"
	}
}

// FileEvent drives blob file state transitions.
type FileEvent int

const (
	// FileEventDbRestart marks a file recovered from the manifest as live.
	FileEventDbRestart FileEvent = iota
	// FileEventFlushOrCompactionOutput marks a newly registered file as
	// live once its registration edit is applied.
	FileEventFlushOrCompactionOutput
	// FileEventGCOutput marks a file created by a GC job; it stays
	// pending until the job completes.
	FileEventGCOutput
	// FileEventGCBegin marks a file as input of a GC job.
	FileEventGCBegin
	// FileEventGCCompleted releases a file when its GC job finishes.
	FileEventGCCompleted
	// FileEventDelete marks a file as logically removed.
	FileEventDelete
)

// String returns the event name.
func (e FileEvent) String() string {
	switch e {
	case FileEventDbRestart:
		return "DbRestart"
	case FileEventFlushOrCompactionOutput:
		return "FlushOrCompactionOutput"
	case FileEventGCOutput:
		return "GCOutput"
	case FileEventGCBegin:
		return "GCBegin"
	case FileEventGCCompleted:
		return "GCCompleted"
	case FileEventDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// BlobFileMeta describes one blob file. The persistent fields (number,
// size, entries, level, key range) are encoded into manifest edits; the
// runtime fields are rebuilt on recovery.
//
// Metas are shared: the registry, outstanding GC tasks and the picker all
// hold references to the same meta. State transitions happen under the
// registry mutex; the state and live data size are additionally atomic so
// the picker and the foreground discard path may read them without it.
type BlobFileMeta struct {
	fileNumber  uint64
	fileSize    uint64
	fileEntries uint64
	fileLevel   uint32
	smallestKey []byte
	largestKey  []byte

	// Physical block size the file was written with. Zero when the file
	// does not use block alignment. Not persisted.
	blockSize uint32

	state        atomic.Int32
	liveDataSize atomic.Int64
}

// NewBlobFileMeta creates a meta in state Init.
func NewBlobFileMeta(fileNumber, fileSize, fileEntries uint64, fileLevel uint32, smallestKey, largestKey []byte) *BlobFileMeta {
	m := &BlobFileMeta{
		fileNumber:  fileNumber,
		fileSize:    fileSize,
		fileEntries: fileEntries,
		fileLevel:   fileLevel,
		smallestKey: smallestKey,
		largestKey:  largestKey,
	}
	m.liveDataSize.Store(int64(fileSize))
	return m
}

// FileNumber returns the unique, immutable file number.
func (m *BlobFileMeta) FileNumber() uint64 { return m.fileNumber }

// FileSize returns the total file size in bytes.
func (m *BlobFileMeta) FileSize() uint64 { return m.fileSize }

// FileEntries returns the number of records in the file.
func (m *BlobFileMeta) FileEntries() uint64 { return m.fileEntries }

// FileLevel returns the lowest level the file's keys were written from.
func (m *BlobFileMeta) FileLevel() uint32 { return m.fileLevel }

// SmallestKey returns the smallest key stored in the file.
func (m *BlobFileMeta) SmallestKey() []byte { return m.smallestKey }

// LargestKey returns the largest key stored in the file.
func (m *BlobFileMeta) LargestKey() []byte { return m.largestKey }

// BlockSize returns the physical block size of the file, zero when the
// file is not block aligned.
func (m *BlobFileMeta) BlockSize() uint32 { return m.blockSize }

// SetBlockSize records the physical block size of the file.
func (m *BlobFileMeta) SetBlockSize(blockSize uint32) { m.blockSize = blockSize }

// FileState returns the current lifecycle state.
func (m *BlobFileMeta) FileState() FileState {
	return FileState(m.state.Load())
}

// IsObsolete reports whether the file has been logically removed.
func (m *BlobFileMeta) IsObsolete() bool {
	return m.FileState() == FileStateObsolete
}

// LiveDataSize returns the current estimate of live bytes in the file.
func (m *BlobFileMeta) LiveDataSize() uint64 {
	return uint64(m.liveDataSize.Load())
}

// SetLiveDataSize resets the live size estimate, used on recovery when
// the real value is unknown.
func (m *BlobFileMeta) SetLiveDataSize(size uint64) {
	m.liveDataSize.Store(int64(size))
}

// AddDiscardableSize records size bytes of the file's data as dead,
// decrementing the live size estimate. Returns false if the estimate
// underflowed and was clamped to zero; the caller should log it.
func (m *BlobFileMeta) AddDiscardableSize(size uint64) bool {
	if m.liveDataSize.Add(-int64(size)) < 0 {
		m.liveDataSize.Store(0)
		return false
	}
	return true
}

// GetDiscardableRatio returns the fraction of the file's bytes that are
// no longer live.
func (m *BlobFileMeta) GetDiscardableRatio() float64 {
	if m.fileSize == 0 {
		return 0
	}
	return 1 - float64(m.LiveDataSize())/float64(m.fileSize)
}

// FileStateTransit applies event to the file's state machine.
// REQUIRES: registry mutex held.
func (m *BlobFileMeta) FileStateTransit(event FileEvent) error {
	state := m.FileState()
	switch event {
	case FileEventDbRestart:
		if state != FileStateInit {
			return transitionError(state, event)
		}
		m.state.Store(int32(FileStateNormal))
	case FileEventFlushOrCompactionOutput:
		if state != FileStateInit {
			return transitionError(state, event)
		}
		m.state.Store(int32(FileStateNormal))
	case FileEventGCOutput:
		if state != FileStateInit {
			return transitionError(state, event)
		}
		m.state.Store(int32(FileStatePendingGC))
	case FileEventGCBegin:
		if state != FileStateNormal {
			return transitionError(state, event)
		}
		m.state.Store(int32(FileStateBeingGC))
	case FileEventGCCompleted:
		// Deleted inputs are already obsolete; releasing them is a no-op.
		if state == FileStateBeingGC || state == FileStatePendingGC {
			m.state.Store(int32(FileStateNormal))
		}
	case FileEventDelete:
		if state == FileStateObsolete {
			return transitionError(state, event)
		}
		m.state.Store(int32(FileStateObsolete))
	default:
		return fmt.Errorf("%w: unknown event %d", ErrInvalidStateTransition, event)
	}
	return nil
}

func transitionError(state FileState, event FileEvent) error {
	return fmt.Errorf("%w: %s on %s", ErrInvalidStateTransition, event, state)
}

// EncodeTo appends the persistent fields to dst in the current manifest
// payload format.
func (m *BlobFileMeta) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendVarint64(dst, m.fileNumber)
	dst = encoding.AppendVarint64(dst, m.fileSize)
	dst = encoding.AppendVarint64(dst, m.fileEntries)
	dst = encoding.AppendVarint32(dst, m.fileLevel)
	dst = encoding.AppendLengthPrefixedSlice(dst, m.smallestKey)
	return encoding.AppendLengthPrefixedSlice(dst, m.largestKey)
}

// DecodeFrom parses the current manifest payload format from s.
func (m *BlobFileMeta) DecodeFrom(s *encoding.Slice) error {
	var ok bool
	if m.fileNumber, ok = s.GetVarint64(); !ok {
		return fmt.Errorf("%w: blob file meta", ErrCorruption)
	}
	if m.fileSize, ok = s.GetVarint64(); !ok {
		return fmt.Errorf("%w: blob file meta", ErrCorruption)
	}
	if m.fileEntries, ok = s.GetVarint64(); !ok {
		return fmt.Errorf("%w: blob file meta", ErrCorruption)
	}
	if m.fileLevel, ok = s.GetVarint32(); !ok {
		return fmt.Errorf("%w: blob file meta", ErrCorruption)
	}
	smallest, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return fmt.Errorf("%w: blob file meta smallest key", ErrCorruption)
	}
	largest, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return fmt.Errorf("%w: blob file meta largest key", ErrCorruption)
	}
	m.smallestKey = append([]byte(nil), smallest...)
	m.largestKey = append([]byte(nil), largest...)
	m.liveDataSize.Store(int64(m.fileSize))
	return nil
}

// DecodeFromLegacy parses the original manifest payload format, which
// carried only the file number and size.
func (m *BlobFileMeta) DecodeFromLegacy(s *encoding.Slice) error {
	var ok bool
	if m.fileNumber, ok = s.GetVarint64(); !ok {
		return fmt.Errorf("%w: blob file meta legacy", ErrCorruption)
	}
	if m.fileSize, ok = s.GetVarint64(); !ok {
		return fmt.Errorf("%w: blob file meta legacy", ErrCorruption)
	}
	m.liveDataSize.Store(int64(m.fileSize))
	return nil
}

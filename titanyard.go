package titanyard

// titanyard.go ties the public surface together: opening the blob file
// registry of a store and creating GC pickers over it.
//
// Reference: Titan (tikv/titan) src/db_impl_open.cc

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/fileset"
	"github.com/aalhour/titanyard/internal/gc"
	"github.com/aalhour/titanyard/internal/manifest"
	"github.com/aalhour/titanyard/internal/vfs"
)

// FileSet tracks the live blob files of every column family and persists
// every change through the blob MANIFEST.
type FileSet = fileset.BlobFileSet

// BlobStorage is the per-column-family view of the blob files.
type BlobStorage = fileset.BlobStorage

// GCScore ranks one blob file for garbage collection.
type GCScore = fileset.GCScore

// BlobFileMeta is the metadata record of one blob file.
type BlobFileMeta = blob.BlobFileMeta

// FileState is the lifecycle state of a blob file.
type FileState = blob.FileState

// FileEvent drives blob file state transitions.
type FileEvent = blob.FileEvent

// Blob file state constants
const (
	FileStateInit      = blob.FileStateInit
	FileStateNormal    = blob.FileStateNormal
	FileStatePendingGC = blob.FileStatePendingGC
	FileStateBeingGC   = blob.FileStateBeingGC
	FileStateObsolete  = blob.FileStateObsolete
)

// Blob file event constants
const (
	FileEventDbRestart               = blob.FileEventDbRestart
	FileEventFlushOrCompactionOutput = blob.FileEventFlushOrCompactionOutput
	FileEventGCOutput                = blob.FileEventGCOutput
	FileEventGCBegin                 = blob.FileEventGCBegin
	FileEventGCCompleted             = blob.FileEventGCCompleted
	FileEventDelete                  = blob.FileEventDelete
)

// NewBlobFileMeta creates the metadata record for a freshly written blob
// file. The host registers it through LogAndApply and then transits it
// to Normal with FileEventFlushOrCompactionOutput.
func NewBlobFileMeta(fileNumber, fileSize, fileEntries uint64, fileLevel uint32, smallestKey, largestKey []byte) *BlobFileMeta {
	return blob.NewBlobFileMeta(fileNumber, fileSize, fileEntries, fileLevel, smallestKey, largestKey)
}

// VersionEdit is one atomic change to the blob file registry.
type VersionEdit = manifest.VersionEdit

// SequenceNumber is a host engine sequence number, used to hold back
// physical deletion until readers of older snapshots are gone.
type SequenceNumber = manifest.SequenceNumber

// KeyRange is an inclusive-start key interval.
type KeyRange = fileset.KeyRange

// BlobGC is one picked garbage collection task.
type BlobGC = gc.BlobGC

// GCPicker selects the blob files for one garbage collection pass.
type GCPicker = gc.BlobGCPicker

// Errors returned by registry operations.
var (
	ErrColumnFamilyNotFound = fileset.ErrColumnFamilyNotFound
	ErrFileNotFound         = fileset.ErrFileNotFound
	ErrCorruption           = manifest.ErrCorruption
)

// Open creates or recovers the blob file registry of the store rooted at
// dbname. The registry lives under opts.Dirname, or "<dbname>/titandb"
// when unset. mu is the registry mutex shared with the host engine; Open
// locks it for the duration of recovery.
func Open(dbname string, opts *Options, mu *sync.Mutex, columnFamilies map[uint32]*CFOptions) (*FileSet, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for cfID, cfOptions := range columnFamilies {
		if err := cfOptions.Validate(); err != nil {
			return nil, fmt.Errorf("column family %d: %w", cfID, err)
		}
	}

	// Open works on a copy so the resolved directory does not leak back
	// into the caller's options.
	resolved := *opts
	if resolved.Dirname == "" {
		resolved.Dirname = filepath.Join(dbname, "titandb")
	}
	fs := resolved.FS
	if fs == nil {
		fs = vfs.Default()
	}
	if err := fs.MkdirAll(resolved.Dirname, 0o755); err != nil {
		return nil, err
	}

	fileSet := fileset.NewBlobFileSet(&resolved, resolved.Statistics, mu)
	mu.Lock()
	defer mu.Unlock()
	if err := fileSet.Open(columnFamilies); err != nil {
		return nil, err
	}
	return fileSet, nil
}

// NewGCPicker creates a garbage collection picker for one column family.
// Tasks returned by the picker reference files of that column family's
// BlobStorage only.
func NewGCPicker(opts *Options, cfID uint32, cfOptions *CFOptions) GCPicker {
	if opts == nil {
		opts = DefaultOptions()
	}
	return gc.NewBasicBlobGCPicker(opts, cfID, cfOptions, opts.Statistics)
}

// BlobFileName returns the path of a numbered blob file.
func BlobFileName(dirname string, fileNumber uint64) string {
	return fileset.BlobFileName(dirname, fileNumber)
}

// ManifestFileName returns the path of a numbered blob MANIFEST file.
func ManifestFileName(dirname string, fileNumber uint64) string {
	return fileset.ManifestFileName(dirname, fileNumber)
}

// CurrentFileName returns the path of the CURRENT file naming the live
// manifest.
func CurrentFileName(dirname string) string {
	return fileset.CurrentFileName(dirname)
}

// blob_storage.go implements the per-column-family view of the blob file
// registry: the live file map, the key-range index used for range deletes,
// the obsolete file list and the GC score tables.
//
// Reference: Titan (tikv/titan)
//   - src/blob_storage.h
//   - src/blob_storage.cc
package fileset

import (
	"sort"
	"sync"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/manifest"
	"github.com/aalhour/titanyard/internal/options"
	"github.com/aalhour/titanyard/internal/stats"
)

// GCScore ranks one blob file for collection.
type GCScore struct {
	FileNumber uint64
	Score      float64
}

// KeyRange is a key interval for range deletion. A nil Start means the
// range extends from the beginning of the keyspace; a nil Limit means it
// extends to the end.
type KeyRange struct {
	Start []byte
	Limit []byte
}

// BlobStorage holds the blob files of one column family. Entries are
// shared with the manifest edits that created them and with in-flight GC
// tasks; file state and live size are updated through the metas themselves.
type BlobStorage struct {
	mu sync.Mutex

	cfID       uint32
	cfOptions  *options.CFOptions
	dirname    string
	comparator blob.Comparator
	statistics stats.Statistics
	logger     logging.Logger

	// files maps file number to meta for every file not yet physically
	// removed, including obsolete ones awaiting deletion.
	files map[uint64]*blob.BlobFileMeta

	// blobRanges indexes the same files by smallest key for range
	// deletion queries. Files with equal smallest keys keep insertion
	// order.
	blobRanges []*blob.BlobFileMeta

	// obsoleteFiles are files logically deleted but not yet handed out
	// for physical removal, with the sequence at which they died.
	obsoleteFiles []obsoleteFile

	gcScore        []GCScore
	punchHoleScore []GCScore

	// destroyed is set once the column family is dropped and its handle
	// destroyed; the storage is removed when the obsolete list drains.
	destroyed bool
	gcJobs    int
}

type obsoleteFile struct {
	fileNumber       uint64
	obsoleteSequence manifest.SequenceNumber
}

// NewBlobStorage creates an empty storage for one column family.
func NewBlobStorage(dirname string, cfID uint32, cfOptions *options.CFOptions, statistics stats.Statistics, logger logging.Logger) *BlobStorage {
	comparator := blob.Comparator(cfOptions.Comparator)
	if comparator == nil {
		comparator = blob.BytewiseComparator
	}
	return &BlobStorage{
		cfID:       cfID,
		cfOptions:  cfOptions,
		dirname:    dirname,
		comparator: comparator,
		statistics: statistics,
		logger:     logging.OrDefault(logger),
		files:      make(map[uint64]*blob.BlobFileMeta),
	}
}

// CFOptions returns the column family configuration.
func (s *BlobStorage) CFOptions() *options.CFOptions {
	return s.cfOptions
}

// FindFile returns the meta for the given file number, or nil if the file
// is not in this storage.
func (s *BlobStorage) FindFile(fileNumber uint64) *blob.BlobFileMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[fileNumber]
}

// NumBlobFiles returns the number of files tracked, including obsolete
// files awaiting physical deletion.
func (s *BlobStorage) NumBlobFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// NumObsoleteBlobFiles returns the number of files awaiting physical
// deletion.
func (s *BlobStorage) NumObsoleteBlobFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.obsoleteFiles)
}

// ExportBlobFiles returns a snapshot of the file map.
func (s *BlobStorage) ExportBlobFiles() map[uint64]*blob.BlobFileMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[uint64]*blob.BlobFileMeta, len(s.files))
	for number, file := range s.files {
		ret[number] = file
	}
	return ret
}

// AddBlobFile registers a new live file.
func (s *BlobStorage) AddBlobFile(file *blob.BlobFileMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.FileNumber()] = file
	s.insertBlobRange(file)
}

// insertBlobRange inserts file into the smallest-key index.
// REQUIRES: s.mu held
func (s *BlobStorage) insertBlobRange(file *blob.BlobFileMeta) {
	i := sort.Search(len(s.blobRanges), func(i int) bool {
		return s.comparator(s.blobRanges[i].SmallestKey(), file.SmallestKey()) > 0
	})
	s.blobRanges = append(s.blobRanges, nil)
	copy(s.blobRanges[i+1:], s.blobRanges[i:])
	s.blobRanges[i] = file
}

// MarkFileObsolete transitions the file to obsolete and queues it for
// physical deletion at the given sequence. It returns false if the file is
// not in this storage.
func (s *BlobStorage) MarkFileObsolete(fileNumber uint64, obsoleteSequence manifest.SequenceNumber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileNumber]
	if !ok {
		return false
	}
	s.markFileObsoleteLocked(file, obsoleteSequence)
	return true
}

// markFileObsoleteLocked queues the file on the obsolete list.
// REQUIRES: s.mu held
func (s *BlobStorage) markFileObsoleteLocked(file *blob.BlobFileMeta, obsoleteSequence manifest.SequenceNumber) {
	s.obsoleteFiles = append(s.obsoleteFiles, obsoleteFile{
		fileNumber:       file.FileNumber(),
		obsoleteSequence: obsoleteSequence,
	})
	if err := file.FileStateTransit(blob.FileEventDelete); err != nil {
		s.logger.Errorf("blob file %d: %v", file.FileNumber(), err)
	}
}

// removeFileLocked drops the file from the in-memory indexes.
// REQUIRES: s.mu held
func (s *BlobStorage) removeFileLocked(fileNumber uint64) {
	if _, ok := s.files[fileNumber]; !ok {
		return
	}
	for i, ranged := range s.blobRanges {
		if ranged.FileNumber() == fileNumber {
			s.blobRanges = append(s.blobRanges[:i], s.blobRanges[i+1:]...)
			break
		}
	}
	delete(s.files, fileNumber)
}

// GetObsoleteFiles returns the paths of obsolete files whose obsolete
// sequence is older than oldestSequence, removing them from the storage.
// Files still visible to a snapshot stay queued.
func (s *BlobStorage) GetObsoleteFiles(oldestSequence manifest.SequenceNumber) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paths []string
	remaining := s.obsoleteFiles[:0]
	for _, entry := range s.obsoleteFiles {
		// The file is safe to delete only once every snapshot taken
		// before it became obsolete has been released.
		if oldestSequence > entry.obsoleteSequence {
			s.removeFileLocked(entry.fileNumber)
			paths = append(paths, BlobFileName(s.dirname, entry.fileNumber))
			continue
		}
		remaining = append(remaining, entry)
	}
	s.obsoleteFiles = remaining
	return paths
}

// GetAllFiles appends the paths of all tracked files to dst, including
// obsolete files not yet physically removed, which a checkpoint of the
// store still needs.
func (s *BlobStorage) GetAllFiles(dst []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for number := range s.files {
		dst = append(dst, BlobFileName(s.dirname, number))
	}
	return dst
}

// GetBlobFilesInRanges returns the numbers of live files whose key range
// is entirely contained in one of the given ranges. Files that only
// overlap a range boundary are kept: deleting them would drop keys
// outside the range.
func (s *BlobStorage) GetBlobFilesInRanges(ranges []KeyRange, includeEnd bool) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []uint64
	for _, r := range ranges {
		start := 0
		if r.Start != nil {
			start = sort.Search(len(s.blobRanges), func(i int) bool {
				return s.comparator(s.blobRanges[i].SmallestKey(), r.Start) >= 0
			})
		}
		for i := start; i < len(s.blobRanges); i++ {
			file := s.blobRanges[i]
			if r.Limit != nil && s.comparator(file.SmallestKey(), r.Limit) > 0 {
				break
			}
			if file.IsObsolete() {
				continue
			}
			// Metas recovered from legacy manifest records carry no key
			// bounds and cannot be matched against a range.
			if len(file.LargestKey()) == 0 {
				continue
			}
			if r.Limit == nil {
				files = append(files, file.FileNumber())
				continue
			}
			cmp := s.comparator(file.LargestKey(), r.Limit)
			if cmp < 0 || (includeEnd && cmp == 0) {
				files = append(files, file.FileNumber())
			}
		}
	}
	return files
}

// GetFileBlockSizes returns the block size of every live file, as learned
// from file headers. Files whose header has not been read yet report 0.
func (s *BlobStorage) GetFileBlockSizes() map[uint64]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make(map[uint64]uint64, len(s.files))
	for number, file := range s.files {
		sizes[number] = uint64(file.BlockSize())
	}
	return sizes
}

// MarkAllFilesForGC transitions every recovered file to Normal so future
// pick rounds can consider it.
func (s *BlobStorage) MarkAllFilesForGC() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, file := range s.files {
		if err := file.FileStateTransit(blob.FileEventDbRestart); err != nil {
			s.logger.Errorf("blob file %d: %v", file.FileNumber(), err)
		}
	}
}

// ComputeGCScore rebuilds the score tables from the current file set.
// Only files in state Normal contribute: files mid-GC or not yet handed
// over by the host are invisible to the picker.
func (s *BlobStorage) ComputeGCScore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	punchHole := s.cfOptions.PunchHoleThreshold > 0
	s.gcScore = s.gcScore[:0]
	if punchHole {
		s.punchHoleScore = s.punchHoleScore[:0]
	}

	for number, file := range s.files {
		if file.FileState() != blob.FileStateNormal {
			continue
		}
		score := GCScore{FileNumber: number}
		if file.FileSize() < s.cfOptions.MergeSmallFileThreshold {
			// Boost small files to the eligibility threshold so they get
			// merged away, while files with more dead data still sort
			// ahead of them.
			score.Score = s.cfOptions.BlobFileDiscardableRatio
		} else {
			score.Score = file.GetDiscardableRatio()
		}
		s.gcScore = append(s.gcScore, score)

		if punchHole {
			s.punchHoleScore = append(s.punchHoleScore, GCScore{
				FileNumber: number,
				Score:      file.GetDiscardableRatio(),
			})
		}
	}

	sort.Slice(s.gcScore, func(i, j int) bool {
		if s.gcScore[i].Score != s.gcScore[j].Score {
			return s.gcScore[i].Score > s.gcScore[j].Score
		}
		return s.gcScore[i].FileNumber < s.gcScore[j].FileNumber
	})
	if punchHole {
		sort.Slice(s.punchHoleScore, func(i, j int) bool {
			if s.punchHoleScore[i].Score != s.punchHoleScore[j].Score {
				return s.punchHoleScore[i].Score < s.punchHoleScore[j].Score
			}
			return s.punchHoleScore[i].FileNumber < s.punchHoleScore[j].FileNumber
		})
	}
}

// GCScores returns the general reclamation ranking, best candidates first.
// The returned slice is a snapshot: later recomputes do not affect it.
func (s *BlobStorage) GCScores() []GCScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GCScore(nil), s.gcScore...)
}

// PunchHoleScores returns the hole-punch ranking, least-dead files first.
// It is empty unless the column family enables hole-punching.
func (s *BlobStorage) PunchHoleScores() []GCScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GCScore(nil), s.punchHoleScore...)
}

// StartGCJob records a GC task holding files of this storage.
func (s *BlobStorage) StartGCJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcJobs++
}

// FinishGCJob records the completion of a GC task.
func (s *BlobStorage) FinishGCJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gcJobs > 0 {
		s.gcJobs--
	}
}

// MarkDestroyed flags the storage for removal once it drains.
func (s *BlobStorage) MarkDestroyed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

// MaybeRemove reports whether the storage can be dropped: it has been
// destroyed, every obsolete file has been physically deleted, and no GC
// task still holds its files.
func (s *BlobStorage) MaybeRemove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed && len(s.obsoleteFiles) == 0 && s.gcJobs == 0
}

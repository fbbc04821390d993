// file_set.go implements the BlobFileSet, the registry of blob files
// across all column families and the MANIFEST log that makes it durable.
//
// The registry is guarded by a mutex owned by the host engine and passed
// in at construction; methods marked REQUIRES expect the caller to hold
// it. Durability follows write-ahead order: an edit is appended to the
// MANIFEST and synced before it is applied in memory, so the in-memory
// registry never claims state the log does not have.
//
// Reference: Titan (tikv/titan)
//   - src/blob_file_set.h
//   - src/blob_file_set.cc
//
// The MaybeKill calls are whitebox crash-test hooks; they compile to
// no-ops without the crashtest build tag.
package fileset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/manifest"
	"github.com/aalhour/titanyard/internal/options"
	"github.com/aalhour/titanyard/internal/record"
	"github.com/aalhour/titanyard/internal/stats"
	"github.com/aalhour/titanyard/internal/testutil"
	"github.com/aalhour/titanyard/internal/vfs"
)

// Errors returned by BlobFileSet operations.
var (
	ErrColumnFamilyNotFound = errors.New("fileset: column family not found")
	ErrFileNotFound         = errors.New("fileset: blob file not found")
)

// manifestWriter is one pending LogAndApply call in the writer queue.
// The queue front is the batch leader: it flushes every queued edit as
// one ordered append and hands each waiter the shared result.
type manifestWriter struct {
	edit *manifest.VersionEdit
	cv   *sync.Cond
	done bool
	err  error
}

// BlobFileSet owns one BlobStorage per column family, the blob MANIFEST
// and the global file number allocator.
type BlobFileSet struct {
	// mu is the registry mutex shared with the host engine. Callers of
	// the methods marked REQUIRES hold it; only GetBlockSize and
	// GetFileBlockSizes lock it themselves.
	mu *sync.Mutex

	dirname    string
	fs         vfs.FS
	logger     logging.Logger
	statistics stats.Statistics

	opened         atomic.Bool
	nextFileNumber atomic.Uint64

	columnFamilies map[uint32]*BlobStorage

	// obsoleteColumns holds dropped column families whose handles the
	// host has not destroyed yet. Their obsolete files must not be
	// physically deleted until MaybeDestroyColumnFamily.
	obsoleteColumns map[uint32]struct{}

	// obsoleteManifests are superseded or half-written MANIFEST files
	// waiting for the purge path to delete them.
	obsoleteManifests []string

	manifestFile   vfs.WritableFile
	manifestWriter *record.Writer
	manifestNumber uint64

	// writers is the queue of pending LogAndApply calls; the front is
	// the batch leader.
	writers []*manifestWriter
}

// NewBlobFileSet creates an empty registry rooted at dbOptions.Dirname.
// mu is the registry mutex owned by the host engine.
func NewBlobFileSet(dbOptions *options.DBOptions, statistics stats.Statistics, mu *sync.Mutex) *BlobFileSet {
	fs := dbOptions.FS
	if fs == nil {
		fs = vfs.Default()
	}
	s := &BlobFileSet{
		mu:              mu,
		dirname:         dbOptions.Dirname,
		fs:              fs,
		logger:          logging.OrDefault(dbOptions.Logger),
		statistics:      statistics,
		columnFamilies:  make(map[uint32]*BlobStorage),
		obsoleteColumns: make(map[uint32]struct{}),
	}
	s.nextFileNumber.Store(1)
	return s
}

// Open sets up the registry under the configured directory. If a CURRENT
// file exists the manifest it names is replayed, otherwise a fresh
// manifest is created holding a snapshot of the initial (empty) state.
// A manifest that cannot be parsed in full is fatal: the store must not
// start on top of metadata it cannot trust.
// REQUIRES: mu held
func (s *BlobFileSet) Open(columnFamilies map[uint32]*options.CFOptions) error {
	_ = testutil.SP(testutil.SPBlobFileSetOpen)

	s.AddColumnFamilies(columnFamilies)

	if s.fs.Exists(CurrentFileName(s.dirname)) {
		if err := s.recover(); err != nil {
			return err
		}
	} else {
		if err := s.openManifest(s.NewFileNumber()); err != nil {
			return err
		}
	}
	s.opened.Store(true)
	return nil
}

// recover replays the manifest named by CURRENT, rolls to a fresh
// manifest, sweeps the directory for files orphaned by a crash and wakes
// the recovered files up for GC.
// REQUIRES: mu held
func (s *BlobFileSet) recover() error {
	_ = testutil.SP(testutil.SPBlobFileSetRecover)

	currentName, err := s.readCurrent()
	if err != nil {
		return err
	}
	if err := s.replayManifest(currentName); err != nil {
		return err
	}

	// Roll the manifest: a fresh one with a full snapshot replaces the
	// replayed one, which is retired to the obsolete list for the purge
	// path to delete.
	if err := s.openManifest(s.NewFileNumber()); err != nil {
		return err
	}
	s.obsoleteManifests = append(s.obsoleteManifests, filepath.Join(s.dirname, currentName))

	s.purgeOrphanedFiles()

	// Recovered metas start in Init; transit them to Normal and rebuild
	// the score tables so future pick rounds see them.
	for _, storage := range s.columnFamilies {
		storage.MarkAllFilesForGC()
		storage.ComputeGCScore()
	}
	return nil
}

// readCurrent reads the CURRENT file and returns the manifest name it
// holds. The content must be a non-empty name terminated by a newline.
func (s *BlobFileSet) readCurrent() (string, error) {
	file, err := s.fs.Open(CurrentFileName(s.dirname))
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return "", fmt.Errorf("%w: CURRENT file does not end with newline", manifest.ErrCorruption)
	}
	name := string(data[:len(data)-1])
	if name == "" {
		return "", fmt.Errorf("%w: CURRENT file names no manifest", manifest.ErrCorruption)
	}
	return name, nil
}

// replayManifest reads the named manifest and applies its edits to the
// registry through an edit collector, then installs the recovered file
// number counter.
// REQUIRES: mu held
func (s *BlobFileSet) replayManifest(name string) error {
	file, err := s.fs.Open(filepath.Join(s.dirname, name))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	// Parse with strict checksum validation. Unlike data recovery, which
	// may tolerate a torn tail, manifest corruption is always fatal -
	// there is no partial-recovery mode for metadata.
	collector := NewEditCollector(s.logger)
	reader := record.NewStrictReader(bytes.NewReader(data))
	for {
		rec, err := reader.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("blob manifest read: %w", err)
		}
		edit := manifest.NewVersionEdit()
		if err := edit.DecodeFrom(rec); err != nil {
			return fmt.Errorf("blob manifest decode: %w", err)
		}
		if err := collector.AddEdit(edit); err != nil {
			return err
		}
	}
	if err := collector.Seal(s); err != nil {
		return err
	}
	if err := collector.Apply(s); err != nil {
		return err
	}

	next, err := collector.NextFileNumber()
	if err != nil {
		return err
	}
	s.nextFileNumber.Store(next)
	s.logger.Infof("Next blob file number is %d.", next)
	return nil
}

// purgeOrphanedFiles removes blob and manifest files in the directory
// that the recovered registry does not track: leftovers of GC rewrites
// or deletions that crashed between the file write and the manifest
// edit. Failures only log; a leftover file costs space, not correctness.
// REQUIRES: mu held
func (s *BlobFileSet) purgeOrphanedFiles() {
	names, err := s.fs.ListDir(s.dirname)
	if err != nil {
		s.logger.Warnf("list blob dir %s: %v", s.dirname, err)
		return
	}

	aliveBlobs := make(map[uint64]struct{})
	for _, storage := range s.columnFamilies {
		for number := range storage.ExportBlobFiles() {
			aliveBlobs[number] = struct{}{}
		}
	}
	// The retired manifest is tracked on the obsolete list; leave its
	// deletion to the purge path.
	aliveManifests := map[string]struct{}{
		ManifestName(s.manifestNumber): {},
	}
	for _, path := range s.obsoleteManifests {
		aliveManifests[filepath.Base(path)] = struct{}{}
	}

	for _, name := range names {
		alive := true
		switch kind, number := parseFileName(name); kind {
		case fileTypeBlob:
			_, alive = aliveBlobs[number]
		case fileTypeManifest:
			_, alive = aliveManifests[name]
		default:
			continue
		}
		if alive {
			continue
		}
		s.logger.Infof("Blob store recovery deletes obsolete file %s.", name)
		if err := s.fs.Remove(filepath.Join(s.dirname, name)); err != nil {
			s.logger.Warnf("delete obsolete file %s: %v", name, err)
		}
	}
}

// openManifest starts a new manifest numbered fileNumber, writes a full
// snapshot of the current registry into it, syncs it and points CURRENT
// at it. On failure the half-written manifest is retired to the obsolete
// list and CURRENT keeps naming its previous target.
// REQUIRES: mu held
func (s *BlobFileSet) openManifest(fileNumber uint64) error {
	path := ManifestFileName(s.dirname, fileNumber)
	file, err := s.fs.Create(path)
	if err != nil {
		return err
	}
	s.manifestFile = file
	s.manifestWriter = record.NewWriter(file)
	s.manifestNumber = fileNumber

	err = s.writeSnapshot()
	if err == nil {
		err = s.setCurrentFile(fileNumber)
	}
	if err != nil {
		_ = file.Close()
		s.manifestFile = nil
		s.manifestWriter = nil
		s.obsoleteManifests = append(s.obsoleteManifests, path)
		return err
	}
	return nil
}

// writeSnapshot appends the global allocation state and one edit per
// column family listing its live files, then syncs the manifest. CURRENT
// must not flip before this is durable.
// REQUIRES: mu held
func (s *BlobFileSet) writeSnapshot() error {
	edit := manifest.NewVersionEdit()
	edit.SetNextFileNumber(s.nextFileNumber.Load())
	if err := s.manifestWriter.AddRecord(edit.EncodeTo(nil)); err != nil {
		return err
	}

	for cfID, storage := range s.columnFamilies {
		edit := manifest.NewVersionEdit()
		edit.SetColumnFamilyID(cfID)
		for _, file := range storage.ExportBlobFiles() {
			if file.IsObsolete() {
				continue
			}
			edit.AddBlobFile(file)
		}
		if err := s.manifestWriter.AddRecord(edit.EncodeTo(nil)); err != nil {
			return err
		}
	}
	return s.manifestFile.Sync()
}

// setCurrentFile writes the CURRENT file pointing to the given manifest.
// Uses the configured VFS and syncs both temp file and directory for durability.
// Reference: RocksDB file/filename.cc SetCurrentFile
func (s *BlobFileSet) setCurrentFile(manifestNumber uint64) error {
	tempPath := tempCurrentFileName(s.dirname)
	currentPath := CurrentFileName(s.dirname)

	// Whitebox [crashtest]: crash before CURRENT update — old CURRENT stays
	testutil.MaybeKill(testutil.KPCurrentWrite0)

	content := ManifestName(manifestNumber) + "\n"
	tempFile, err := s.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create CURRENT.tmp: %w", err)
	}

	if _, err := tempFile.Write([]byte(content)); err != nil {
		_ = tempFile.Close()      // best-effort cleanup
		_ = s.fs.Remove(tempPath) // best-effort cleanup
		return fmt.Errorf("write CURRENT.tmp: %w", err)
	}

	// Sync temp file before rename (durability)
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()      // best-effort cleanup
		_ = s.fs.Remove(tempPath) // best-effort cleanup
		return fmt.Errorf("sync CURRENT.tmp: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		_ = s.fs.Remove(tempPath) // best-effort cleanup
		return fmt.Errorf("close CURRENT.tmp: %w", err)
	}

	// Atomic rename using VFS
	if err := s.fs.Rename(tempPath, currentPath); err != nil {
		_ = s.fs.Remove(tempPath) // best-effort cleanup
		return fmt.Errorf("rename CURRENT: %w", err)
	}

	// Whitebox [crashtest]: crash after rename — CURRENT points at the new
	// manifest but the rename may not be durable yet
	testutil.MaybeKill(testutil.KPCurrentWrite1)

	// Whitebox [crashtest]: crash before directory sync — CURRENT may not be durable
	testutil.MaybeKill(testutil.KPDirSync0)

	// Sync directory to ensure rename is durable
	if err := s.fs.SyncDir(s.dirname); err != nil {
		return fmt.Errorf("sync dir after CURRENT rename: %w", err)
	}

	// Whitebox [crashtest]: crash after directory sync — CURRENT is fully durable
	testutil.MaybeKill(testutil.KPDirSync1)

	return nil
}

// LogAndApply makes edit durable and then applies it to the in-memory
// registry. Concurrent callers are batched: every edit pending when a
// batch leader starts is validated against the current state, written
// and synced as one ordered append, and either all of them apply or none
// do. Memory changes only after the sync succeeds, so an append failure
// leaves the registry untouched for every edit in the batch, and all
// batched callers observe the same error.
// REQUIRES: mu held
func (s *BlobFileSet) LogAndApply(edit *manifest.VersionEdit) error {
	_ = testutil.SP(testutil.SPBlobFileSetLogAndApply)

	w := &manifestWriter{edit: edit, cv: sync.NewCond(s.mu)}
	s.writers = append(s.writers, w)
	for !w.done && s.writers[0] != w {
		w.cv.Wait()
	}
	if w.done {
		return w.err
	}

	// Batch leader: flush every writer queued so far.
	batch := make([]*manifestWriter, len(s.writers))
	copy(batch, s.writers)

	err := s.writeBatch(batch)
	if err != nil {
		s.logger.Errorf("blob manifest log and apply: %v", err)
	}

	// Hand every batched writer the shared result, then wake the next
	// leader if more writers arrived during the flush.
	s.writers = s.writers[len(batch):]
	for _, bw := range batch {
		bw.done = true
		bw.err = err
		if bw != w {
			bw.cv.Signal()
		}
	}
	if len(s.writers) > 0 {
		s.writers[0].cv.Signal()
	}
	_ = testutil.SP(testutil.SPBlobFileSetLogAndApplyDone)
	return err
}

// writeBatch validates, persists and applies one batch of edits.
// REQUIRES: mu held; temporarily released for the manifest I/O
func (s *BlobFileSet) writeBatch(batch []*manifestWriter) error {
	collector := NewEditCollector(s.logger)
	records := make([][]byte, 0, len(batch))
	for _, w := range batch {
		// Persist the allocation counter with every edit so recovery
		// never reuses a file number.
		w.edit.SetNextFileNumber(s.nextFileNumber.Load())
		if err := collector.AddEdit(w.edit); err != nil {
			return err
		}
		records = append(records, w.edit.EncodeTo(nil))
	}
	if err := collector.Seal(s); err != nil {
		return err
	}

	// The writer queue keeps this the only in-flight append, so the I/O
	// may run without the registry mutex.
	s.mu.Unlock()
	err := s.appendRecords(records)
	s.mu.Lock()
	if err != nil {
		return err
	}

	return collector.Apply(s)
}

// appendRecords writes the encoded edits to the manifest and syncs.
func (s *BlobFileSet) appendRecords(records [][]byte) error {
	// Whitebox [crashtest]: crash before MANIFEST write — tests partial manifest handling
	testutil.MaybeKill(testutil.KPManifestWrite0)

	for _, rec := range records {
		if err := s.manifestWriter.AddRecord(rec); err != nil {
			return err
		}
	}

	// Whitebox [crashtest]: crash before MANIFEST sync — tests unsynced manifest
	testutil.MaybeKill(testutil.KPManifestSync0)

	start := time.Now()
	if err := s.manifestFile.Sync(); err != nil {
		return err
	}
	stats.MeasureTime(s.statistics, stats.HistogramManifestFileSyncMicros,
		uint64(time.Since(start).Microseconds()))

	// Whitebox [crashtest]: crash after MANIFEST sync — edits durable, not yet applied
	testutil.MaybeKill(testutil.KPManifestSync1)

	return nil
}

// AddColumnFamilies registers a storage for each given column family.
// Already registered ids are left alone.
// REQUIRES: mu held
func (s *BlobFileSet) AddColumnFamilies(columnFamilies map[uint32]*options.CFOptions) {
	for cfID, cfOptions := range columnFamilies {
		if _, ok := s.columnFamilies[cfID]; ok {
			continue
		}
		s.columnFamilies[cfID] = NewBlobStorage(s.dirname, cfID, cfOptions, s.statistics, s.logger)
	}
}

// DropColumnFamilies logs the deletion of every live file of the given
// column families at obsoleteSequence and marks the column families
// obsolete. Physical bytes are untouched: the host may still hold a
// handle, so reclamation waits for MaybeDestroyColumnFamily.
// REQUIRES: mu held
func (s *BlobFileSet) DropColumnFamilies(columnFamilies []uint32, obsoleteSequence manifest.SequenceNumber) error {
	for _, cfID := range columnFamilies {
		storage := s.columnFamilies[cfID]
		if storage == nil {
			s.logger.Errorf("column family %d not found for drop", cfID)
			return fmt.Errorf("%w: column family %d", ErrColumnFamilyNotFound, cfID)
		}

		edit := manifest.NewVersionEdit()
		edit.SetColumnFamilyID(cfID)
		for number, file := range storage.ExportBlobFiles() {
			if file.IsObsolete() {
				continue
			}
			s.logger.Infof("Blob store add obsolete file [%d]", number)
			edit.DeleteBlobFile(number, obsoleteSequence)
		}
		if err := s.LogAndApply(edit); err != nil {
			return err
		}
		s.obsoleteColumns[cfID] = struct{}{}
	}
	return nil
}

// MaybeDestroyColumnFamily finalizes a drop once the host has destroyed
// its handle to the column family. The storage is removed immediately if
// nothing holds it; otherwise removal happens when the last obsolete
// file is purged and the last GC job finishes.
// REQUIRES: mu held
func (s *BlobFileSet) MaybeDestroyColumnFamily(cfID uint32) error {
	delete(s.obsoleteColumns, cfID)
	storage := s.columnFamilies[cfID]
	if storage == nil {
		s.logger.Errorf("column family %d not found when destroying", cfID)
		return fmt.Errorf("%w: column family %d", ErrColumnFamilyNotFound, cfID)
	}
	storage.MarkDestroyed()
	if storage.MaybeRemove() {
		delete(s.columnFamilies, cfID)
	}
	return nil
}

// DeleteBlobFilesInRanges logs the deletion of every live file whose key
// range is entirely contained in one of the given ranges. Physical
// deletion is deferred to GetObsoleteFiles.
// REQUIRES: mu held
func (s *BlobFileSet) DeleteBlobFilesInRanges(cfID uint32, ranges []KeyRange, includeEnd bool, obsoleteSequence manifest.SequenceNumber) error {
	storage := s.columnFamilies[cfID]
	if storage == nil {
		s.logger.Errorf("column family %d not found for delete in ranges", cfID)
		return fmt.Errorf("%w: column family %d", ErrColumnFamilyNotFound, cfID)
	}

	edit := manifest.NewVersionEdit()
	edit.SetColumnFamilyID(cfID)
	for _, number := range storage.GetBlobFilesInRanges(ranges, includeEnd) {
		edit.DeleteBlobFile(number, obsoleteSequence)
	}
	return s.LogAndApply(edit)
}

// GetObsoleteFiles returns every file that is safe to physically delete
// once oldestSequence is the oldest snapshot still open: obsolete blob
// files no snapshot can see, plus superseded manifests. Storages of
// destroyed column families are dropped once they drain. Files of
// dropped-but-not-destroyed column families are held back.
// REQUIRES: mu held
func (s *BlobFileSet) GetObsoleteFiles(oldestSequence manifest.SequenceNumber) []string {
	var files []string
	for cfID, storage := range s.columnFamilies {
		// A handle to a dropped column family may still be outstanding;
		// its files stay until MaybeDestroyColumnFamily.
		if _, ok := s.obsoleteColumns[cfID]; ok {
			continue
		}
		files = append(files, storage.GetObsoleteFiles(oldestSequence)...)
		if storage.MaybeRemove() {
			delete(s.columnFamilies, cfID)
		}
	}
	files = append(files, s.obsoleteManifests...)
	s.obsoleteManifests = nil
	return files
}

// GetAllFiles returns the paths of every file a checkpoint of the store
// needs: all tracked blob files plus the active manifest.
// REQUIRES: mu held
func (s *BlobFileSet) GetAllFiles() []string {
	var files []string
	for _, storage := range s.columnFamilies {
		files = storage.GetAllFiles(files)
	}
	files = append(files, ManifestFileName(s.dirname, s.manifestNumber))
	return files
}

// GetBlobStorage returns the storage of the column family, or nil. The
// storage is shared; the caller gains no ownership of its lifetime.
// REQUIRES: mu held
func (s *BlobFileSet) GetBlobStorage(cfID uint32) *BlobStorage {
	return s.columnFamilies[cfID]
}

// IsColumnFamilyObsolete reports whether the column family was dropped
// but not yet destroyed.
// REQUIRES: mu held
func (s *BlobFileSet) IsColumnFamilyObsolete(cfID uint32) bool {
	_, ok := s.obsoleteColumns[cfID]
	return ok
}

// NewFileNumber allocates the next globally unique file number.
func (s *BlobFileSet) NewFileNumber() uint64 {
	return s.nextFileNumber.Add(1) - 1
}

// IsOpened reports whether Open completed successfully.
func (s *BlobFileSet) IsOpened() bool {
	return s.opened.Load()
}

// ManifestNumber returns the file number of the active manifest.
// REQUIRES: mu held
func (s *BlobFileSet) ManifestNumber() uint64 {
	return s.manifestNumber
}

// GetBlockSize returns the physical block size of the given file, or
// zero when the file is unknown or its column family does not use
// hole-punching.
// REQUIRES: mu NOT held
func (s *BlobFileSet) GetBlockSize(cfID uint32, fileNumber uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage := s.columnFamilies[cfID]
	if storage == nil || storage.cfOptions.PunchHoleThreshold == 0 {
		return 0
	}
	file := storage.FindFile(fileNumber)
	if file == nil {
		return 0
	}
	return uint64(file.BlockSize())
}

// GetFileBlockSizes returns the block size of every file of the column
// family, or nil when it does not use hole-punching.
// REQUIRES: mu NOT held
func (s *BlobFileSet) GetFileBlockSizes(cfID uint32) map[uint64]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage := s.columnFamilies[cfID]
	if storage == nil || storage.cfOptions.PunchHoleThreshold == 0 {
		return nil
	}
	return storage.GetFileBlockSizes()
}

// Close releases the manifest writer. It deletes nothing.
// REQUIRES: mu held
func (s *BlobFileSet) Close() error {
	if s.manifestFile != nil {
		if err := s.manifestFile.Close(); err != nil {
			return err
		}
		s.manifestFile = nil
		s.manifestWriter = nil
	}
	s.opened.Store(false)
	return nil
}

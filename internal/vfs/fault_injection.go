// Fault-injecting filesystem for tests. It wraps a base FS, fails
// selected operations on demand, and tracks which bytes of each file
// have reached stable storage so a test can simulate the data loss of a
// crash.
//
// Reference: RocksDB v10.7.5
//   - utilities/fault_injection_fs.h
//   - utilities/fault_injection_fs.cc
package vfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrInjectedReadError reports an injected read failure.
	ErrInjectedReadError = errors.New("vfs: injected read error")

	// ErrInjectedWriteError reports an injected write failure.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedSyncError reports an injected sync failure.
	ErrInjectedSyncError = errors.New("vfs: injected sync error")
)

// faultConfig is the switchboard of pending injections. A path of ""
// matches every file.
type faultConfig struct {
	readError  bool
	writeError bool
	syncError  bool
	readPath   string
	writePath  string

	// active false fails every mutation, as if the disk vanished.
	active bool
}

// trackedFile records how far a file has been synced.
type trackedFile struct {
	pos       int64 // bytes written
	syncedPos int64 // bytes known durable
	dirSynced bool  // parent directory synced since creation
}

// FaultInjectionFS wraps an FS with switchable failures and sync
// tracking.
type FaultInjectionFS struct {
	base FS

	mu     sync.RWMutex
	faults faultConfig
	files  map[string]*trackedFile
}

// NewFaultInjectionFS wraps base with fault injection. All injections
// start off.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{
		base:   base,
		faults: faultConfig{active: true},
		files:  make(map[string]*trackedFile),
	}
}

// SetFilesystemActive toggles the filesystem. While inactive every
// mutation fails, simulating a dead disk.
func (fs *FaultInjectionFS) SetFilesystemActive(active bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.faults.active = active
}

// InjectReadError makes reads of path fail. "" fails reads everywhere.
func (fs *FaultInjectionFS) InjectReadError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.faults.readError = true
	fs.faults.readPath = path
}

// InjectWriteError makes writes to path fail. "" fails writes
// everywhere.
func (fs *FaultInjectionFS) InjectWriteError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.faults.writeError = true
	fs.faults.writePath = path
}

// InjectSyncError makes every Sync fail.
func (fs *FaultInjectionFS) InjectSyncError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.faults.syncError = true
}

// ClearErrors turns all injections off.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	active := fs.faults.active
	fs.faults = faultConfig{active: active}
}

// readErrorFor reports the injected error for reading name, if any.
func (fs *FaultInjectionFS) readErrorFor(name string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.faults.readError && (fs.faults.readPath == "" || fs.faults.readPath == name) {
		return ErrInjectedReadError
	}
	return nil
}

// writeErrorFor reports the injected error for mutating name, if any.
func (fs *FaultInjectionFS) writeErrorFor(name string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.faults.active {
		return ErrInjectedWriteError
	}
	if fs.faults.writeError && (fs.faults.writePath == "" || fs.faults.writePath == name) {
		return ErrInjectedWriteError
	}
	return nil
}

// GetFileState returns the sync tracking of a file.
func (fs *FaultInjectionFS) GetFileState(path string) (syncedPos, currentPos int64, ok bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	tf, exists := fs.files[path]
	if !exists {
		return 0, 0, false
	}
	return tf.syncedPos, tf.pos, true
}

// DropUnsyncedData simulates the crash outcome: every tracked file is
// truncated back to its last synced position.
func (fs *FaultInjectionFS) DropUnsyncedData() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for path, tf := range fs.files {
		if tf.syncedPos >= tf.pos {
			continue
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0644)
		if err != nil {
			continue // already gone
		}
		_ = f.Truncate(tf.syncedPos)
		_ = f.Close()
		tf.pos = tf.syncedPos
	}
	return nil
}

// DeleteUnsyncedFiles removes files whose creation never became durable
// because the parent directory was not synced.
func (fs *FaultInjectionFS) DeleteUnsyncedFiles() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for path, tf := range fs.files {
		if !tf.dirSynced {
			os.Remove(path)
			delete(fs.files, path)
		}
	}
	return nil
}

// track registers a file under its absolute path.
func (fs *FaultInjectionFS) track(name string, tf *trackedFile) string {
	abs, _ := filepath.Abs(name)
	fs.mu.Lock()
	fs.files[abs] = tf
	fs.mu.Unlock()
	return abs
}

func (fs *FaultInjectionFS) Create(name string) (WritableFile, error) {
	if err := fs.writeErrorFor(name); err != nil {
		return nil, err
	}
	f, err := fs.base.Create(name)
	if err != nil {
		return nil, err
	}
	abs := fs.track(name, &trackedFile{})
	return &faultWritableFile{base: f, fs: fs, path: abs}, nil
}

func (fs *FaultInjectionFS) OpenAppend(name string) (WritableFile, error) {
	if err := fs.writeErrorFor(name); err != nil {
		return nil, err
	}
	f, err := fs.base.OpenAppend(name)
	if err != nil {
		return nil, err
	}
	size, _ := f.Size()
	// The file predates this open, so its directory entry is durable.
	abs := fs.track(name, &trackedFile{pos: size, syncedPos: size, dirSynced: true})
	return &faultWritableFile{base: f, fs: fs, path: abs}, nil
}

func (fs *FaultInjectionFS) Open(name string) (SequentialFile, error) {
	if err := fs.readErrorFor(name); err != nil {
		return nil, err
	}
	return fs.base.Open(name)
}

// OpenRandomAccess wraps the file so reads keep consulting the
// injection flags; errors can surface mid-iteration.
func (fs *FaultInjectionFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	if err := fs.readErrorFor(name); err != nil {
		return nil, err
	}
	f, err := fs.base.OpenRandomAccess(name)
	if err != nil {
		return nil, err
	}
	return &faultRandomAccessFile{base: f, fs: fs, name: name}, nil
}

func (fs *FaultInjectionFS) Rename(oldname, newname string) error {
	fs.mu.RLock()
	active := fs.faults.active
	fs.mu.RUnlock()
	if !active {
		return ErrInjectedWriteError
	}

	if err := fs.base.Rename(oldname, newname); err != nil {
		return err
	}

	fs.mu.Lock()
	absOld, _ := filepath.Abs(oldname)
	absNew, _ := filepath.Abs(newname)
	if tf, ok := fs.files[absOld]; ok {
		fs.files[absNew] = tf
		delete(fs.files, absOld)
	}
	fs.mu.Unlock()
	return nil
}

func (fs *FaultInjectionFS) Remove(name string) error {
	if err := fs.base.Remove(name); err != nil {
		return err
	}
	abs, _ := filepath.Abs(name)
	fs.mu.Lock()
	delete(fs.files, abs)
	fs.mu.Unlock()
	return nil
}

func (fs *FaultInjectionFS) RemoveAll(path string) error {
	return fs.base.RemoveAll(path)
}

func (fs *FaultInjectionFS) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.RLock()
	active := fs.faults.active
	fs.mu.RUnlock()
	if !active {
		return ErrInjectedWriteError
	}
	return fs.base.MkdirAll(path, perm)
}

func (fs *FaultInjectionFS) Stat(name string) (os.FileInfo, error) {
	return fs.base.Stat(name)
}

func (fs *FaultInjectionFS) Exists(name string) bool {
	return fs.base.Exists(name)
}

func (fs *FaultInjectionFS) ListDir(path string) ([]string, error) {
	return fs.base.ListDir(path)
}

func (fs *FaultInjectionFS) Lock(name string) (io.Closer, error) {
	return fs.base.Lock(name)
}

// SyncDir marks every tracked file directly under path as having a
// durable directory entry.
func (fs *FaultInjectionFS) SyncDir(path string) error {
	abs, _ := filepath.Abs(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for filePath, tf := range fs.files {
		if filepath.Dir(filePath) == abs {
			tf.dirSynced = true
		}
	}
	return nil
}

// faultWritableFile intercepts writes and syncs of one tracked file.
type faultWritableFile struct {
	base WritableFile
	fs   *FaultInjectionFS
	path string
}

func (f *faultWritableFile) Write(p []byte) (int, error) {
	if err := f.fs.writeErrorFor(f.path); err != nil {
		return 0, err
	}
	n, err := f.base.Write(p)
	if err != nil {
		return n, err
	}
	f.fs.mu.Lock()
	if tf, ok := f.fs.files[f.path]; ok {
		tf.pos += int64(n)
	}
	f.fs.mu.Unlock()
	return n, nil
}

func (f *faultWritableFile) Append(data []byte) error {
	_, err := f.Write(data)
	return err
}

func (f *faultWritableFile) Sync() error {
	f.fs.mu.RLock()
	syncError := f.fs.faults.syncError
	f.fs.mu.RUnlock()
	if syncError {
		return ErrInjectedSyncError
	}

	if err := f.base.Sync(); err != nil {
		return err
	}
	f.fs.mu.Lock()
	if tf, ok := f.fs.files[f.path]; ok {
		tf.syncedPos = tf.pos
	}
	f.fs.mu.Unlock()
	return nil
}

func (f *faultWritableFile) Truncate(size int64) error {
	if err := f.fs.writeErrorFor(f.path); err != nil {
		return err
	}
	if err := f.base.Truncate(size); err != nil {
		return err
	}
	f.fs.mu.Lock()
	if tf, ok := f.fs.files[f.path]; ok {
		tf.pos = size
		if tf.syncedPos > size {
			tf.syncedPos = size
		}
	}
	f.fs.mu.Unlock()
	return nil
}

func (f *faultWritableFile) Close() error {
	return f.base.Close()
}

func (f *faultWritableFile) Size() (int64, error) {
	return f.base.Size()
}

// faultRandomAccessFile re-checks read injection on every ReadAt.
type faultRandomAccessFile struct {
	base RandomAccessFile
	fs   *FaultInjectionFS
	name string
}

func (f *faultRandomAccessFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.fs.readErrorFor(f.name); err != nil {
		return 0, err
	}
	return f.base.ReadAt(p, off)
}

func (f *faultRandomAccessFile) Close() error {
	return f.base.Close()
}

func (f *faultRandomAccessFile) Size() int64 {
	return f.base.Size()
}

func (f *faultRandomAccessFile) Prefetch(offset, length int64) error {
	return f.base.Prefetch(offset, length)
}

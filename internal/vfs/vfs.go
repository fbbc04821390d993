// Package vfs abstracts the filesystem under the blob store. Production
// code runs on the real OS filesystem; tests swap in a fault-injecting
// wrapper to exercise MANIFEST durability and blob read error paths.
//
// Reference: RocksDB v10.7.5 include/rocksdb/file_system.h
package vfs

import (
	"io"
	"os"
)

// FS is the filesystem seen by the blob store.
type FS interface {
	// Create makes a new writable file, truncating any existing one.
	Create(name string) (WritableFile, error)

	// OpenAppend opens a file for appending, creating it if absent.
	OpenAppend(name string) (WritableFile, error)

	// Open opens a file for sequential reading.
	Open(name string) (SequentialFile, error)

	// OpenRandomAccess opens a file for positional reads.
	OpenRandomAccess(name string) (RandomAccessFile, error)

	// Rename atomically renames a file.
	Rename(oldname, newname string) error

	// Remove deletes a file.
	Remove(name string) error

	// RemoveAll deletes a directory tree.
	RemoveAll(path string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info.
	Stat(name string) (os.FileInfo, error)

	// Exists reports whether the file exists.
	Exists(name string) bool

	// ListDir returns the entry names of a directory.
	ListDir(path string) ([]string, error)

	// Lock takes an exclusive advisory lock on the named file. Closing
	// the returned Closer releases it.
	Lock(name string) (io.Closer, error)

	// SyncDir makes directory metadata durable. Required after renames:
	// a renamed CURRENT is not crash-safe until its directory is synced.
	// Reference: RocksDB file/filename.cc SetCurrentFile.
	SyncDir(path string) error
}

// WritableFile is an append-oriented output file.
type WritableFile interface {
	io.Writer
	io.Closer

	// Sync flushes written data to stable storage.
	Sync() error

	// Append writes data at the end of the file.
	Append(data []byte) error

	// Truncate resizes the file.
	Truncate(size int64) error

	// Size returns the current file size.
	Size() (int64, error)
}

// SequentialFile is read front to back.
type SequentialFile interface {
	io.Reader
	io.Closer

	// Skip advances the read position by n bytes.
	Skip(n int64) error
}

// RandomAccessFile serves positional reads.
type RandomAccessFile interface {
	io.ReaderAt
	io.Closer

	// Size returns the file size.
	Size() int64

	// Prefetch hints that [offset, offset+length) will be read soon.
	// Best-effort: implementations may ignore it and callers must not
	// rely on it for correctness.
	// Reference: RocksDB file/readahead_raf.cc.
	Prefetch(offset, length int64) error
}

// Default returns the OS filesystem.
func Default() FS {
	return osFS{}
}

type osFS struct{}

func (osFS) Create(name string) (WritableFile, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &osWritableFile{File: f}, nil
}

func (osFS) OpenAppend(name string) (WritableFile, error) {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &osWritableFile{File: f}, nil
}

func (osFS) Open(name string) (SequentialFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &osSequentialFile{File: f}, nil
}

func (osFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &osRandomAccessFile{File: f, size: info.Size()}, nil
}

func (osFS) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

func (osFS) Remove(name string) error {
	return os.Remove(name)
}

func (osFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (osFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (osFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (osFS) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (osFS) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (osFS) Lock(name string) (io.Closer, error) {
	return lockFile(name)
}

func (osFS) SyncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	syncErr := dir.Sync()
	closeErr := dir.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// osWritableFile adds the WritableFile surface on top of os.File, which
// already provides Write, Sync, Truncate and Close.
type osWritableFile struct {
	*os.File
}

func (wf *osWritableFile) Append(data []byte) error {
	_, err := wf.File.Write(data)
	return err
}

func (wf *osWritableFile) Size() (int64, error) {
	info, err := wf.File.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

type osSequentialFile struct {
	*os.File
}

func (sf *osSequentialFile) Skip(n int64) error {
	_, err := sf.File.Seek(n, io.SeekCurrent)
	return err
}

type osRandomAccessFile struct {
	*os.File
	size int64
}

func (rf *osRandomAccessFile) Size() int64 {
	return rf.size
}

// Prefetch advises the kernel to load the range into the page cache.
// Failures are swallowed: the hint never affects correctness.
func (rf *osRandomAccessFile) Prefetch(offset, length int64) error {
	_ = prefetchFile(rf.File, offset, length)
	return nil
}

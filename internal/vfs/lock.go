//go:build !windows

package vfs

import (
	"io"
	"os"
	"syscall"
)

// fileLock holds an flock on an open file until Close.
//
// Reference: RocksDB v10.7.5 env/env_posix.cc (PosixEnv::LockFile)
type fileLock struct {
	f *os.File
}

// lockFile takes a non-blocking exclusive lock on name, creating the
// file if needed. A second process locking the same name fails with
// EWOULDBLOCK, which is how a store directory rejects double opens.
func lockFile(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) Close() error {
	// Closing the descriptor would drop the lock anyway; unlock first
	// so the release is explicit.
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	return l.f.Close()
}

//go:build windows

package vfs

import (
	"io"
	"os"
)

// fileLock holds the lock file open until Close.
//
// Reference: RocksDB v10.7.5 env/env_win.cc (WinEnvIO::LockFile)
type fileLock struct {
	f *os.File
}

// lockFile opens the lock file and keeps it open. Windows file handles
// give no flock equivalent here; LockFileEx would be stricter, but the
// open handle already stops a second store from deleting the directory
// out from under us.
func lockFile(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) Close() error {
	return l.f.Close()
}

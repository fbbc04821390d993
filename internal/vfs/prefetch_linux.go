//go:build linux && (amd64 || arm64)

// prefetch_linux.go implements read-ahead hints via posix_fadvise.
//
// Reference: RocksDB v10.7.5
//   - env/io_posix.cc (PosixRandomAccessFile::Prefetch)
package vfs

import (
	"os"
	"syscall"
)

// fadvWillNeed is POSIX_FADV_WILLNEED, value 3 on every Linux architecture.
const fadvWillNeed = 3

// prefetchFile asks the kernel to start reading the range into the page
// cache. 64-bit only: fadvise64 takes the offset split across registers on
// 32-bit ABIs.
func prefetchFile(f *os.File, offset, length int64) error {
	_, _, errno := syscall.Syscall6(syscall.SYS_FADVISE64,
		f.Fd(), uintptr(offset), uintptr(length), fadvWillNeed, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

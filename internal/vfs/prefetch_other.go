//go:build !linux || (!amd64 && !arm64)

package vfs

import "os"

// prefetchFile is a no-op where posix_fadvise is unavailable; the OS
// read-ahead for buffered files still applies.
func prefetchFile(f *os.File, offset, length int64) error {
	return nil
}

// Package fileset maintains the authoritative registry of live blob files.
//
// A BlobFileSet owns one BlobStorage per column family and a MANIFEST log.
// Every change to the registry is a VersionEdit appended to the MANIFEST
// before it is applied in memory; replaying the log on open rebuilds the
// exact set of live files. Obsolete files are tracked with the sequence
// number at which they became invisible and are handed to the caller for
// physical deletion only once no snapshot can still reach them.
//
// Reference: Titan (tikv/titan)
//   - src/blob_file_set.h
//   - src/blob_file_set.cc
//   - src/blob_storage.cc
package fileset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// BlobFileName returns the path of a blob file under dirname.
func BlobFileName(dirname string, number uint64) string {
	return filepath.Join(dirname, fmt.Sprintf("%06d.blob", number))
}

// ManifestName returns the bare name of a MANIFEST file.
func ManifestName(number uint64) string {
	return fmt.Sprintf("MANIFEST-%06d", number)
}

// ManifestFileName returns the path of a MANIFEST file under dirname.
func ManifestFileName(dirname string, number uint64) string {
	return filepath.Join(dirname, ManifestName(number))
}

// CurrentFileName returns the path of the CURRENT file, which holds the
// name of the active MANIFEST.
func CurrentFileName(dirname string) string {
	return filepath.Join(dirname, "CURRENT")
}

func tempCurrentFileName(dirname string) string {
	return filepath.Join(dirname, "CURRENT.tmp")
}

// fileType classifies entries of the blob directory.
type fileType int

const (
	fileTypeUnknown fileType = iota
	fileTypeBlob
	fileTypeManifest
)

// parseFileName reports the type of a directory entry and, for blob and
// MANIFEST files, the file number encoded in the name. Anything else,
// CURRENT included, is unknown.
func parseFileName(name string) (fileType, uint64) {
	if rest, ok := strings.CutSuffix(name, ".blob"); ok {
		number, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return fileTypeUnknown, 0
		}
		return fileTypeBlob, number
	}
	if rest, ok := strings.CutPrefix(name, "MANIFEST-"); ok {
		number, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return fileTypeUnknown, 0
		}
		return fileTypeManifest, number
	}
	return fileTypeUnknown, 0
}

// Package options defines configuration for the blob store: store-wide
// DBOptions and per-column-family CFOptions, with defaults matching the
// reference implementation, plus OPTIONS file parsing.
//
// Reference: RocksDB v10.7.5
//   - options/options_helper.cc
//   - options/db_options.cc
package options

import (
	"fmt"

	"github.com/aalhour/titanyard/internal/checksum"
	"github.com/aalhour/titanyard/internal/compression"
	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/stats"
	"github.com/aalhour/titanyard/internal/vfs"
)

// BlobRunMode controls how the blob-value path behaves for a column family.
type BlobRunMode int

const (
	// RunModeNormal writes new values to blob files and collects garbage
	// normally.
	RunModeNormal BlobRunMode = iota

	// RunModeReadOnly keeps reading existing blob files but writes new
	// values to the base engine only.
	RunModeReadOnly

	// RunModeFallback migrates values back to the base engine: GC collects
	// only fully-dead blob files, bypassing batch thresholds, until none
	// remain.
	RunModeFallback
)

// String returns the canonical name of the run mode.
func (m BlobRunMode) String() string {
	switch m {
	case RunModeNormal:
		return "kNormal"
	case RunModeReadOnly:
		return "kReadOnly"
	case RunModeFallback:
		return "kFallback"
	default:
		return "Unknown"
	}
}

// DBOptions contains store-wide configuration.
type DBOptions struct {
	// Dirname is the directory for blob files and the blob MANIFEST.
	// If empty, "<dbname>/titandb" is used.
	Dirname string

	// DisableBackgroundGC disables automatic blob garbage collection.
	// Default: false
	DisableBackgroundGC bool

	// MaxBackgroundGC is the maximum number of concurrent GC jobs.
	// Default: 1
	MaxBackgroundGC int

	// PurgeObsoleteFilesPeriodSec is how often obsolete blob files are
	// physically deleted, in seconds.
	// Default: 600 (10 minutes)
	PurgeObsoleteFilesPeriodSec int

	// FS is the filesystem implementation to use.
	// If nil, the OS filesystem is used.
	FS vfs.FS

	// Logger is the logger for store operations.
	// If nil, a default WARN-level logger writing to stderr is used.
	Logger logging.Logger

	// Statistics collects store metrics.
	// If nil, no metrics are collected.
	Statistics stats.Statistics
}

// DefaultDBOptions returns a new DBOptions with default values.
func DefaultDBOptions() *DBOptions {
	return &DBOptions{
		Dirname:                     "",
		DisableBackgroundGC:         false,
		MaxBackgroundGC:             1,
		PurgeObsoleteFilesPeriodSec: 600,
		FS:                          nil, // Will use vfs.Default()
		Logger:                      nil, // Will use logging.OrDefault
		Statistics:                  nil, // No metrics collected
	}
}

// Validate checks the options for consistency.
func (o *DBOptions) Validate() error {
	if o.MaxBackgroundGC < 0 {
		return fmt.Errorf("options: max background gc %d is negative", o.MaxBackgroundGC)
	}
	if o.PurgeObsoleteFilesPeriodSec < 0 {
		return fmt.Errorf("options: purge period %d is negative", o.PurgeObsoleteFilesPeriodSec)
	}
	return nil
}

// CFOptions contains per-column-family configuration for the blob path.
type CFOptions struct {
	// Comparator orders keys the way the host engine does. It returns a
	// negative, zero or positive value as a sorts before, equal to or
	// after b. If nil, bytewise order is used.
	Comparator func(a, b []byte) int

	// MinBlobSize is the smallest value size stored in blob files; smaller
	// values stay inline in the base engine.
	// Default: 4096
	MinBlobSize uint64

	// BlobFileCompression is the per-record compression for blob files.
	// Default: NoCompression
	BlobFileCompression compression.Type

	// ChecksumType is the checksum used for blob file meta block trailers.
	// Default: CRC32C
	ChecksumType checksum.Type

	// BlobFileTargetSize is the desired size of a GC output blob file.
	// GC stops accumulating inputs once the estimated live output reaches
	// this size.
	// Default: 256MB
	BlobFileTargetSize uint64

	// MinGCBatchSize is the minimum total input size that justifies a GC
	// pass.
	// Default: 512MB
	MinGCBatchSize uint64

	// MaxGCBatchSize is the maximum total input size for one GC pass.
	// Default: 1GB
	MaxGCBatchSize uint64

	// BlobFileDiscardableRatio is the fraction of dead bytes at which a
	// blob file becomes worth collecting.
	// Default: 0.5
	BlobFileDiscardableRatio float64

	// MergeSmallFileThreshold is the file size below which a blob file is
	// collected just to merge it with others, regardless of its ratio.
	// Default: 8MB
	MergeSmallFileThreshold uint64

	// BlobRunMode controls the blob-value path.
	// Default: RunModeNormal
	BlobRunMode BlobRunMode

	// PunchHoleThreshold enables punch-hole GC when > 0: space of dead
	// records is reclaimed in place by deallocating their blocks. The
	// value is the minimum effective (live) size for a file to stay
	// hole-punched rather than rewritten.
	// Default: 0 (disabled)
	PunchHoleThreshold uint64

	// BlockSize is the physical block alignment of blob files, required
	// for punch-hole GC. Records are padded to block boundaries so holes
	// can be deallocated at block granularity.
	// Default: 4096
	BlockSize uint64
}

// DefaultCFOptions returns a new CFOptions with default values.
func DefaultCFOptions() *CFOptions {
	return &CFOptions{
		MinBlobSize:              4096,
		BlobFileCompression:      compression.NoCompression,
		ChecksumType:             checksum.TypeCRC32C,
		BlobFileTargetSize:       256 * 1024 * 1024,
		MinGCBatchSize:           512 * 1024 * 1024,
		MaxGCBatchSize:           1024 * 1024 * 1024,
		BlobFileDiscardableRatio: 0.5,
		MergeSmallFileThreshold:  8 * 1024 * 1024,
		BlobRunMode:              RunModeNormal,
		PunchHoleThreshold:       0,
		BlockSize:                4096,
	}
}

// Validate checks the options for consistency.
func (o *CFOptions) Validate() error {
	if o.BlobFileDiscardableRatio < 0 || o.BlobFileDiscardableRatio > 1 {
		return fmt.Errorf("options: blob file discardable ratio %v out of [0, 1]",
			o.BlobFileDiscardableRatio)
	}
	if o.BlobFileTargetSize == 0 {
		return fmt.Errorf("options: blob file target size is zero")
	}
	if o.MaxGCBatchSize == 0 {
		return fmt.Errorf("options: max gc batch size is zero")
	}
	if !o.BlobFileCompression.IsSupported() {
		return fmt.Errorf("options: unsupported blob file compression %s",
			o.BlobFileCompression)
	}
	if !o.ChecksumType.IsSupported() {
		return fmt.Errorf("options: unsupported checksum type %s", o.ChecksumType)
	}
	if o.PunchHoleThreshold > 0 && o.BlockSize == 0 {
		return fmt.Errorf("options: punch hole gc requires a non-zero block size")
	}
	return nil
}

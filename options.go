package titanyard

// options.go re-exports the store configuration surface.
//
// Reference: Titan (tikv/titan) include/titan/options.h

import (
	"io"

	"github.com/aalhour/titanyard/internal/checksum"
	"github.com/aalhour/titanyard/internal/compression"
	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/options"
	"github.com/aalhour/titanyard/internal/vfs"
)

// Options contains store-wide configuration.
type Options = options.DBOptions

// CFOptions contains per-column-family configuration for the blob path.
type CFOptions = options.CFOptions

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return options.DefaultDBOptions()
}

// DefaultCFOptions returns a new CFOptions with default values.
func DefaultCFOptions() *CFOptions {
	return options.DefaultCFOptions()
}

// BlobRunMode controls how the blob-value path behaves for a column family.
type BlobRunMode = options.BlobRunMode

// Blob run mode constants
const (
	RunModeNormal   = options.RunModeNormal
	RunModeReadOnly = options.RunModeReadOnly
	RunModeFallback = options.RunModeFallback
)

// CompressionType is an alias for the compression type.
type CompressionType = compression.Type

// Compression type constants
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// ChecksumType is an alias for the checksum type.
type ChecksumType = checksum.Type

// Checksum type constants
const (
	ChecksumTypeNoChecksum = checksum.TypeNoChecksum
	ChecksumTypeCRC32C     = checksum.TypeCRC32C
	ChecksumTypeXXH3       = checksum.TypeXXH3
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// LogLevel filters log output by severity.
type LogLevel = logging.Level

// Log level constants
const (
	LogLevelError = logging.LevelError
	LogLevelWarn  = logging.LevelWarn
	LogLevelInfo  = logging.LevelInfo
	LogLevelDebug = logging.LevelDebug
)

// NewLogger creates a leveled logger writing to w.
func NewLogger(w io.Writer, level LogLevel) Logger {
	return logging.NewLogger(w, level)
}

// FS abstracts the filesystem used for store I/O. Tests substitute
// in-memory or fault-injecting implementations.
type FS = vfs.FS

// RandomAccessFile supports positioned reads of a blob file.
type RandomAccessFile = vfs.RandomAccessFile

// DefaultFS returns the OS filesystem.
func DefaultFS() FS {
	return vfs.Default()
}

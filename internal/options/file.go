// file.go implements OPTIONS file parsing for blob store configuration.
//
// The file uses the RocksDB OPTIONS format: INI-style sections with
// key=value lines. Blob store settings live in [TitanDBOptions] and
// [TitanCFOptions "name"] sections alongside the base engine's sections,
// which are ignored here.
//
// Reference: RocksDB v10.7.5
//   - options/options_helper.cc
//   - options/options_parser.cc
package options

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/aalhour/titanyard/internal/compression"
	"github.com/aalhour/titanyard/internal/vfs"
)

// ParsedOptions represents blob store options parsed from an OPTIONS file.
type ParsedOptions struct {
	RocksDBVersion     string
	OptionsFileVersion int

	DB *DBOptions

	// CF maps column family name to its parsed options.
	CF map[string]*CFOptions
}

// ReadOptionsFile reads and parses an OPTIONS file.
func ReadOptionsFile(fs vfs.FS, path string) (*ParsedOptions, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return ParseOptionsFile(file)
}

// ParseOptionsFile parses options from a reader. Unknown sections and keys
// are ignored so the same file can carry base engine options.
func ParseOptionsFile(r io.Reader) (*ParsedOptions, error) {
	opts := &ParsedOptions{
		DB: DefaultDBOptions(),
		CF: make(map[string]*CFOptions),
	}

	scanner := bufio.NewScanner(r)
	currentSection := ""
	currentCF := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Check for section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			currentCF = ""
			if name, ok := strings.CutPrefix(currentSection, `TitanCFOptions "`); ok {
				currentSection = "TitanCFOptions"
				currentCF = strings.TrimSuffix(name, `"`)
				if _, ok := opts.CF[currentCF]; !ok {
					opts.CF[currentCF] = DefaultCFOptions()
				}
			}
			continue
		}

		// Parse key=value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch currentSection {
		case "Version":
			switch key {
			case "rocksdb_version":
				opts.RocksDBVersion = value
			case "options_file_version":
				opts.OptionsFileVersion, _ = strconv.Atoi(value)
			}

		case "TitanDBOptions":
			db := opts.DB
			switch key {
			case "dirname":
				db.Dirname = value
			case "disable_background_gc":
				db.DisableBackgroundGC = parseBool(value)
			case "max_background_gc":
				db.MaxBackgroundGC, _ = strconv.Atoi(value)
			case "purge_obsolete_files_period_sec":
				db.PurgeObsoleteFilesPeriodSec, _ = strconv.Atoi(value)
			}

		case "TitanCFOptions":
			cf := opts.CF[currentCF]
			switch key {
			case "min_blob_size":
				cf.MinBlobSize, _ = strconv.ParseUint(value, 10, 64)
			case "blob_file_compression":
				cf.BlobFileCompression = StringToCompressionType(value)
			case "blob_file_target_size":
				cf.BlobFileTargetSize, _ = strconv.ParseUint(value, 10, 64)
			case "min_gc_batch_size":
				cf.MinGCBatchSize, _ = strconv.ParseUint(value, 10, 64)
			case "max_gc_batch_size":
				cf.MaxGCBatchSize, _ = strconv.ParseUint(value, 10, 64)
			case "blob_file_discardable_ratio":
				cf.BlobFileDiscardableRatio, _ = strconv.ParseFloat(value, 64)
			case "merge_small_file_threshold":
				cf.MergeSmallFileThreshold, _ = strconv.ParseUint(value, 10, 64)
			case "blob_run_mode":
				cf.BlobRunMode = StringToBlobRunMode(value)
			case "punch_hole_threshold":
				cf.PunchHoleThreshold, _ = strconv.ParseUint(value, 10, 64)
			case "block_size":
				cf.BlockSize, _ = strconv.ParseUint(value, 10, 64)
			}
		}
	}

	return opts, scanner.Err()
}

func parseBool(s string) bool {
	return s == "true" || s == "1"
}

// StringToCompressionType converts an OPTIONS file value to compression.Type.
func StringToCompressionType(s string) compression.Type {
	switch s {
	case "kNoCompression":
		return compression.NoCompression
	case "kSnappyCompression":
		return compression.SnappyCompression
	case "kZlibCompression":
		return compression.ZlibCompression
	case "kLZ4Compression":
		return compression.LZ4Compression
	case "kLZ4HCCompression":
		return compression.LZ4HCCompression
	case "kZSTD", "kZSTDNotFinalCompression":
		return compression.ZstdCompression
	default:
		return compression.NoCompression
	}
}

// StringToBlobRunMode converts an OPTIONS file value to BlobRunMode.
func StringToBlobRunMode(s string) BlobRunMode {
	switch s {
	case "kNormal":
		return RunModeNormal
	case "kReadOnly":
		return RunModeReadOnly
	case "kFallback":
		return RunModeFallback
	default:
		return RunModeNormal
	}
}

package titanyard

// statistics.go re-exports the metrics surface of the internal stats
// package.
//
// Reference: Titan (tikv/titan) src/titan_stats.h

import (
	"github.com/aalhour/titanyard/internal/stats"
)

// Statistics collects and reports blob store metrics.
type Statistics = stats.Statistics

// TickerType represents different types of counters.
type TickerType = stats.TickerType

// HistogramType represents different types of histograms.
type HistogramType = stats.HistogramType

// HistogramData contains histogram statistics.
type HistogramData = stats.HistogramData

// NewStatistics creates a new Statistics instance.
func NewStatistics() Statistics {
	return stats.NewStatistics()
}

// Ticker constants
const (
	TickerNumGet                 = stats.TickerNumGet
	TickerNumSeek                = stats.TickerNumSeek
	TickerNumNext                = stats.TickerNumNext
	TickerNumPrev                = stats.TickerNumPrev
	TickerBlobFileNumKeysWritten = stats.TickerBlobFileNumKeysWritten
	TickerBlobFileNumKeysRead    = stats.TickerBlobFileNumKeysRead
	TickerBlobFileBytesWritten   = stats.TickerBlobFileBytesWritten
	TickerBlobFileBytesRead      = stats.TickerBlobFileBytesRead
	TickerBlobFileSynced         = stats.TickerBlobFileSynced
	TickerGCNumFiles             = stats.TickerGCNumFiles
	TickerGCNumNewFiles          = stats.TickerGCNumNewFiles
	TickerGCNumKeysOverwritten   = stats.TickerGCNumKeysOverwritten
	TickerGCNumKeysRelocated     = stats.TickerGCNumKeysRelocated
	TickerGCNumKeysFallback      = stats.TickerGCNumKeysFallback
	TickerGCBytesOverwritten     = stats.TickerGCBytesOverwritten
	TickerGCBytesRelocated       = stats.TickerGCBytesRelocated
	TickerGCBytesFallback        = stats.TickerGCBytesFallback
	TickerGCBytesWritten         = stats.TickerGCBytesWritten
	TickerGCBytesRead            = stats.TickerGCBytesRead
	TickerGCDiscardable          = stats.TickerGCDiscardable
	TickerGCSmallFile            = stats.TickerGCSmallFile
	TickerGCRemain               = stats.TickerGCRemain
	TickerGCNoNeed               = stats.TickerGCNoNeed
	TickerGCFailure              = stats.TickerGCFailure
	TickerGCSuccess              = stats.TickerGCSuccess
	TickerGCTriggerNext          = stats.TickerGCTriggerNext
	TickerBlobCacheHit           = stats.TickerBlobCacheHit
	TickerBlobCacheMiss          = stats.TickerBlobCacheMiss
)

// Histogram constants
const (
	HistogramKeySize                = stats.HistogramKeySize
	HistogramValueSize              = stats.HistogramValueSize
	HistogramBlobFileWriteMicros    = stats.HistogramBlobFileWriteMicros
	HistogramBlobFileReadMicros     = stats.HistogramBlobFileReadMicros
	HistogramBlobFileSyncMicros     = stats.HistogramBlobFileSyncMicros
	HistogramManifestFileSyncMicros = stats.HistogramManifestFileSyncMicros
	HistogramGCInputFileSize        = stats.HistogramGCInputFileSize
	HistogramGCOutputFileSize       = stats.HistogramGCOutputFileSize
	HistogramIterTouchBlobFileCount = stats.HistogramIterTouchBlobFileCount
)

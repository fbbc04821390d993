// Package stats implements the Statistics interface for collecting blob
// store metrics.
//
// Reference: RocksDB v10.7.5 include/rocksdb/statistics.h
package stats

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// TickerType represents different types of counters.
type TickerType int

const (
	// TickerNumGet is the count of point reads served from blob files.
	TickerNumGet TickerType = iota
	// TickerNumSeek is the count of iterator seeks touching blob files.
	TickerNumSeek
	// TickerNumNext is the count of iterator next calls touching blob files.
	TickerNumNext
	// TickerNumPrev is the count of iterator prev calls touching blob files.
	TickerNumPrev
	// TickerBlobFileNumKeysWritten is the count of keys written to blob files.
	TickerBlobFileNumKeysWritten
	// TickerBlobFileNumKeysRead is the count of keys read from blob files.
	TickerBlobFileNumKeysRead
	// TickerBlobFileBytesWritten is the total bytes written to blob files.
	TickerBlobFileBytesWritten
	// TickerBlobFileBytesRead is the total bytes read from blob files.
	TickerBlobFileBytesRead
	// TickerBlobFileSynced is the count of blob file syncs.
	TickerBlobFileSynced
	// TickerGCNumFiles is the count of blob files obsoleted by GC.
	TickerGCNumFiles
	// TickerGCNumNewFiles is the count of blob files created by GC.
	TickerGCNumNewFiles
	// TickerGCNumKeysOverwritten is the count of keys found overwritten during GC.
	TickerGCNumKeysOverwritten
	// TickerGCNumKeysRelocated is the count of keys relocated by GC.
	TickerGCNumKeysRelocated
	// TickerGCNumKeysFallback is the count of keys written back to the base engine.
	TickerGCNumKeysFallback
	// TickerGCBytesOverwritten is the bytes of overwritten values seen by GC.
	TickerGCBytesOverwritten
	// TickerGCBytesRelocated is the bytes relocated by GC.
	TickerGCBytesRelocated
	// TickerGCBytesFallback is the bytes written back to the base engine.
	TickerGCBytesFallback
	// TickerGCBytesWritten is the total bytes written by GC.
	TickerGCBytesWritten
	// TickerGCBytesRead is the total bytes read by GC.
	TickerGCBytesRead
	// TickerGCDiscardable is the count of files picked for their dead-data ratio.
	TickerGCDiscardable
	// TickerGCSmallFile is the count of files picked for being small.
	TickerGCSmallFile
	// TickerGCRemain is the count of GC rounds leaving eligible files behind.
	TickerGCRemain
	// TickerGCNoNeed is the count of pick attempts that produced no task.
	TickerGCNoNeed
	// TickerGCFailure is the count of failed GC jobs.
	TickerGCFailure
	// TickerGCSuccess is the count of completed GC jobs.
	TickerGCSuccess
	// TickerGCTriggerNext is the count of follow-up GC rounds requested.
	TickerGCTriggerNext
	// TickerBlobCacheHit is the count of blob cache hits.
	TickerBlobCacheHit
	// TickerBlobCacheMiss is the count of blob cache misses.
	TickerBlobCacheMiss

	// TickerEnumMax is the maximum ticker type for sizing arrays.
	TickerEnumMax
)

// String returns the name of the ticker type.
func (t TickerType) String() string {
	names := []string{
		"titandb.num.get",
		"titandb.num.seek",
		"titandb.num.next",
		"titandb.num.prev",
		"titandb.blob.file.num.keys.written",
		"titandb.blob.file.num.keys.read",
		"titandb.blob.file.bytes.written",
		"titandb.blob.file.bytes.read",
		"titandb.blob.file.synced",
		"titandb.gc.num.files",
		"titandb.gc.num.new.files",
		"titandb.gc.num.keys.overwritten",
		"titandb.gc.num.keys.relocated",
		"titandb.gc.num.keys.fallback",
		"titandb.gc.bytes.overwritten",
		"titandb.gc.bytes.relocated",
		"titandb.gc.bytes.fallback",
		"titandb.gc.bytes.written",
		"titandb.gc.bytes.read",
		"titandb.gc.discardable",
		"titandb.gc.small.file",
		"titandb.gc.remain",
		"titandb.gc.no.need",
		"titandb.gc.failure",
		"titandb.gc.success",
		"titandb.gc.trigger.next",
		"titandb.blob.cache.hit",
		"titandb.blob.cache.miss",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// HistogramType represents different types of histograms.
type HistogramType int

const (
	// HistogramKeySize is the histogram of blob record key sizes.
	HistogramKeySize HistogramType = iota
	// HistogramValueSize is the histogram of blob record value sizes.
	HistogramValueSize
	// HistogramBlobFileWriteMicros is the histogram of blob file write latency.
	HistogramBlobFileWriteMicros
	// HistogramBlobFileReadMicros is the histogram of blob file read latency.
	HistogramBlobFileReadMicros
	// HistogramBlobFileSyncMicros is the histogram of blob file sync latency.
	HistogramBlobFileSyncMicros
	// HistogramManifestFileSyncMicros is the histogram of manifest sync latency.
	HistogramManifestFileSyncMicros
	// HistogramGCInputFileSize is the histogram of GC input file sizes.
	HistogramGCInputFileSize
	// HistogramGCOutputFileSize is the histogram of GC output file sizes.
	HistogramGCOutputFileSize
	// HistogramIterTouchBlobFileCount is the histogram of blob files touched per iterator.
	HistogramIterTouchBlobFileCount

	// HistogramEnumMax is the maximum histogram type for sizing arrays.
	HistogramEnumMax
)

// String returns the name of the histogram type.
func (h HistogramType) String() string {
	names := []string{
		"titandb.key.size",
		"titandb.value.size",
		"titandb.blob.file.write.micros",
		"titandb.blob.file.read.micros",
		"titandb.blob.file.sync.micros",
		"titandb.manifest.file.sync.micros",
		"titandb.gc.input.file.size",
		"titandb.gc.output.file.size",
		"titandb.iter.touch.blob.file.count",
	}
	if int(h) < len(names) {
		return names[h]
	}
	return "unknown"
}

// HistogramData contains histogram statistics.
type HistogramData struct {
	Average float64
	Max     float64
	Min     float64
	Count   uint64
	Sum     uint64
}

// Statistics collects and reports blob store metrics.
type Statistics interface {
	// GetTickerCount returns the current value of a ticker.
	GetTickerCount(tickerType TickerType) uint64

	// RecordTick increments a ticker by count.
	RecordTick(tickerType TickerType, count uint64)

	// SetTickerCount sets the ticker to a specific value.
	SetTickerCount(tickerType TickerType, count uint64)

	// GetHistogramData returns histogram statistics.
	GetHistogramData(histogramType HistogramType) HistogramData

	// MeasureTime records a value to a histogram.
	MeasureTime(histogramType HistogramType, value uint64)

	// Reset clears all statistics.
	Reset()

	// String returns a formatted string of all statistics.
	String() string
}

// RecordTick increments a ticker, tolerating a nil Statistics.
func RecordTick(s Statistics, tickerType TickerType, count uint64) {
	if s != nil {
		s.RecordTick(tickerType, count)
	}
}

// MeasureTime records a histogram value, tolerating a nil Statistics.
func MeasureTime(s Statistics, histogramType HistogramType, value uint64) {
	if s != nil {
		s.MeasureTime(histogramType, value)
	}
}

// statisticsImpl is the default implementation of Statistics.
type statisticsImpl struct {
	tickers    [TickerEnumMax]uint64
	histograms [HistogramEnumMax]*histogramImpl
}

// histogramImpl is a simple histogram implementation.
type histogramImpl struct {
	min   uint64
	max   uint64
	sum   uint64
	count uint64
}

// NewStatistics creates a new Statistics instance.
func NewStatistics() Statistics {
	s := &statisticsImpl{}
	for i := range s.histograms {
		s.histograms[i] = &histogramImpl{min: ^uint64(0)}
	}
	return s
}

// GetTickerCount returns the current value of a ticker.
func (s *statisticsImpl) GetTickerCount(tickerType TickerType) uint64 {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return 0
	}
	return atomic.LoadUint64(&s.tickers[tickerType])
}

// RecordTick increments a ticker by count.
func (s *statisticsImpl) RecordTick(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	atomic.AddUint64(&s.tickers[tickerType], count)
}

// SetTickerCount sets the ticker to a specific value.
func (s *statisticsImpl) SetTickerCount(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	atomic.StoreUint64(&s.tickers[tickerType], count)
}

// GetHistogramData returns histogram statistics.
func (s *statisticsImpl) GetHistogramData(histogramType HistogramType) HistogramData {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return HistogramData{}
	}

	h := s.histograms[histogramType]
	count := atomic.LoadUint64(&h.count)
	if count == 0 {
		return HistogramData{}
	}

	sum := atomic.LoadUint64(&h.sum)
	hmin := atomic.LoadUint64(&h.min)
	hmax := atomic.LoadUint64(&h.max)

	return HistogramData{
		Count:   count,
		Sum:     sum,
		Min:     float64(hmin),
		Max:     float64(hmax),
		Average: float64(sum) / float64(count),
	}
}

// MeasureTime records a value to a histogram.
func (s *statisticsImpl) MeasureTime(histogramType HistogramType, value uint64) {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return
	}

	h := s.histograms[histogramType]
	atomic.AddUint64(&h.count, 1)
	atomic.AddUint64(&h.sum, value)

	// Update min atomically
	for {
		old := atomic.LoadUint64(&h.min)
		if value >= old {
			break
		}
		if atomic.CompareAndSwapUint64(&h.min, old, value) {
			break
		}
	}

	// Update max atomically
	for {
		old := atomic.LoadUint64(&h.max)
		if value <= old {
			break
		}
		if atomic.CompareAndSwapUint64(&h.max, old, value) {
			break
		}
	}
}

// Reset clears all statistics.
func (s *statisticsImpl) Reset() {
	for i := range s.tickers {
		atomic.StoreUint64(&s.tickers[i], 0)
	}
	for i := range s.histograms {
		s.histograms[i] = &histogramImpl{min: ^uint64(0)}
	}
}

// String returns a formatted string of all statistics.
func (s *statisticsImpl) String() string {
	var b strings.Builder

	b.WriteString("TICKERS:\n")
	for i := TickerType(0); i < TickerEnumMax; i++ {
		count := s.GetTickerCount(i)
		if count > 0 {
			fmt.Fprintf(&b, "  %s : %d\n", i, count)
		}
	}

	b.WriteString("\nHISTOGRAMS:\n")
	for i := HistogramType(0); i < HistogramEnumMax; i++ {
		data := s.GetHistogramData(i)
		if data.Count > 0 {
			fmt.Fprintf(&b, "  %s :\n", i)
			fmt.Fprintf(&b, "    Count: %d\n", data.Count)
			fmt.Fprintf(&b, "    Avg: %.2f\n", data.Average)
			fmt.Fprintf(&b, "    Min: %.2f\n", data.Min)
			fmt.Fprintf(&b, "    Max: %.2f\n", data.Max)
		}
	}

	return b.String()
}

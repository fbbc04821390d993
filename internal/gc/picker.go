// picker.go implements the selection policy for garbage collection: which
// blob files are worth collecting right now, and how.
//
// Reference: Titan (tikv/titan)
//   - src/blob_gc_picker.h
//   - src/blob_gc_picker.cc
package gc

import (
	"math"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/fileset"
	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/options"
	"github.com/aalhour/titanyard/internal/stats"
	"github.com/aalhour/titanyard/internal/testutil"
)

// fallbackEpsilon is one ulp above 1.0. In fallback mode a file counts as
// fully dead when its score is within this distance of 1.0, absorbing the
// rounding of the live-size arithmetic.
var fallbackEpsilon = math.Nextafter(1, 2) - 1

// BlobGCPicker selects the blob files for one garbage collection pass.
type BlobGCPicker interface {
	// PickBlobGC returns the next GC task for the column family, or nil
	// when nothing is worth collecting.
	// REQUIRES: registry mutex held
	PickBlobGC(storage *fileset.BlobStorage) *BlobGC
}

// BasicBlobGCPicker picks in two phases: files cold enough to keep and
// reclaim in place by hole-punching, then files dead enough to rewrite.
// A single invocation returns at most one task, never both kinds.
type BasicBlobGCPicker struct {
	cfID       uint32
	cfOptions  *options.CFOptions
	statistics stats.Statistics
	logger     logging.Logger
}

// NewBasicBlobGCPicker creates a picker for one column family.
func NewBasicBlobGCPicker(dbOptions *options.DBOptions, cfID uint32, cfOptions *options.CFOptions, statistics stats.Statistics) *BasicBlobGCPicker {
	return &BasicBlobGCPicker{
		cfID:       cfID,
		cfOptions:  cfOptions,
		statistics: statistics,
		logger:     logging.OrDefault(dbOptions.Logger),
	}
}

// PickBlobGC implements BlobGCPicker.
// REQUIRES: registry mutex held
func (p *BasicBlobGCPicker) PickBlobGC(storage *fileset.BlobStorage) *BlobGC {
	_ = testutil.SP(testutil.SPGCPickStart)
	if storage == nil {
		return nil
	}

	task := p.pickPunchHole(storage)
	if task == nil {
		task = p.pickRewrite(storage)
	}
	if task != nil && task.maybeContinueNextTime {
		stats.RecordTick(p.statistics, stats.TickerGCTriggerNext, 1)
	}
	_ = testutil.SP(testutil.SPGCPickComplete)
	return task
}

// pickPunchHole scans the punch-hole ranking, coldest files first. Files
// holding enough dead data to reach the discardable-ratio threshold are
// left for the rewrite phase, which reclaims them entirely.
func (p *BasicBlobGCPicker) pickPunchHole(storage *fileset.BlobStorage) *BlobGC {
	if p.cfOptions.PunchHoleThreshold == 0 {
		return nil
	}

	var (
		inputs           []*blob.BlobFileMeta
		batchSize        uint64
		stopPicking      bool
		continueNextTime bool
	)
	for _, score := range storage.PunchHoleScores() {
		if score.Score >= p.cfOptions.BlobFileDiscardableRatio {
			break
		}
		file := storage.FindFile(score.FileNumber)
		if !p.checkBlobFile(file) {
			p.logger.Infof("Blob file %d no need gc", score.FileNumber)
			continue
		}
		if stopPicking {
			// One more eligible file is enough to know another round is
			// worthwhile.
			continueNextTime = true
			break
		}
		inputs = append(inputs, file)
		batchSize += file.FileSize()
		if batchSize >= p.cfOptions.MaxGCBatchSize {
			stopPicking = true
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	return &BlobGC{
		inputs:                inputs,
		cfID:                  p.cfID,
		cfOptions:             p.cfOptions,
		storage:               storage,
		maybeContinueNextTime: continueNextTime,
		punchHole:             true,
		statistics:            p.statistics,
		logger:                p.logger,
	}
}

// pickRewrite scans the general ranking, most collectable files first,
// and batches them for a rewrite. In fallback mode only fully dead files
// are taken and every batch limit is bypassed: the column family is being
// drained, not optimized.
func (p *BasicBlobGCPicker) pickRewrite(storage *fileset.BlobStorage) *BlobGC {
	var (
		inputs             []*blob.BlobFileMeta
		batchSize          uint64
		estimateOutputSize uint64
		nextGCSize         uint64
		stopPicking        bool
		continueNextTime   bool
	)
	inFallback := p.cfOptions.BlobRunMode == options.RunModeFallback

	for _, score := range storage.GCScores() {
		// Scores sort best first: after the first partially live file,
		// every further file is partially live too.
		if inFallback && math.Abs(1-score.Score) > fallbackEpsilon {
			break
		}
		file := storage.FindFile(score.FileNumber)
		if !p.checkBlobFile(file) {
			p.logger.Infof("Blob file %d no need gc", score.FileNumber)
			continue
		}
		if !stopPicking {
			inputs = append(inputs, file)
			if file.FileSize() <= p.cfOptions.MergeSmallFileThreshold {
				stats.RecordTick(p.statistics, stats.TickerGCSmallFile, 1)
			} else {
				stats.RecordTick(p.statistics, stats.TickerGCDiscardable, 1)
			}
			batchSize += file.FileSize()
			estimateOutputSize += file.LiveDataSize()
			if !inFallback && (batchSize >= p.cfOptions.MaxGCBatchSize ||
				estimateOutputSize >= p.cfOptions.BlobFileTargetSize) {
				// Stop growing the batch but keep scanning to learn
				// whether enough work remains for another round.
				stopPicking = true
			}
		} else {
			nextGCSize += file.FileSize()
			if nextGCSize > p.cfOptions.MinGCBatchSize {
				continueNextTime = true
				stats.RecordTick(p.statistics, stats.TickerGCRemain, 1)
				p.logger.Infof("remain more than %d bytes to be gc and trigger after this gc", nextGCSize)
				break
			}
		}
	}
	p.logger.Debugf("got batch size %d, estimate output %d bytes", batchSize, estimateOutputSize)

	if len(inputs) == 0 {
		stats.RecordTick(p.statistics, stats.TickerGCNoNeed, 1)
		return nil
	}
	if !inFallback {
		// Not enough garbage to pay for a rewrite pass.
		if batchSize < p.cfOptions.MinGCBatchSize &&
			estimateOutputSize < p.cfOptions.BlobFileTargetSize {
			stats.RecordTick(p.statistics, stats.TickerGCNoNeed, 1)
			return nil
		}
		// A lone small file that is neither very dead nor has anything
		// to merge with is left alone.
		if len(inputs) == 1 && inputs[0].FileSize() <= p.cfOptions.MergeSmallFileThreshold &&
			inputs[0].GetDiscardableRatio() < p.cfOptions.BlobFileDiscardableRatio {
			stats.RecordTick(p.statistics, stats.TickerGCNoNeed, 1)
			return nil
		}
	}
	return &BlobGC{
		inputs:                inputs,
		cfID:                  p.cfID,
		cfOptions:             p.cfOptions,
		storage:               storage,
		maybeContinueNextTime: continueNextTime,
		statistics:            p.statistics,
		logger:                p.logger,
	}
}

// checkBlobFile reports whether the file may enter a GC task. Only state
// Normal is eligible: anything else is not yet handed over, already
// mid-GC, or already removed.
func (p *BasicBlobGCPicker) checkBlobFile(file *blob.BlobFileMeta) bool {
	return file != nil && file.FileState() == blob.FileStateNormal
}

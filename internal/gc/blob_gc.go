// blob_gc.go defines BlobGC, one garbage collection task over a set of
// blob files of a single column family. The picker creates the task, the
// host's GC executor runs it, and the files return to the registry when
// the task's manifest edit has been applied.
//
// Reference: Titan (tikv/titan)
//   - src/blob_gc.h
//   - src/blob_gc.cc
package gc

import (
	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/fileset"
	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/options"
	"github.com/aalhour/titanyard/internal/stats"
)

// BlobGC is one garbage collection pass: the input files to collect, the
// output files the rewrite produces, and hints for the scheduler. Input
// metas are shared with the registry; only their state changes here.
type BlobGC struct {
	inputs  []*blob.BlobFileMeta
	outputs []*blob.BlobFileMeta

	cfID      uint32
	cfOptions *options.CFOptions
	storage   *fileset.BlobStorage

	// maybeContinueNextTime asks the scheduler to run another pass right
	// after this one: eligible files were left behind by the batch limit.
	maybeContinueNextTime bool

	// punchHole collects in place by deallocating dead blocks instead of
	// rewriting live records into new files.
	punchHole bool

	statistics stats.Statistics
	logger     logging.Logger
}

// Inputs returns the files this task collects.
func (g *BlobGC) Inputs() []*blob.BlobFileMeta {
	return g.inputs
}

// Outputs returns the files the rewrite has produced so far.
func (g *BlobGC) Outputs() []*blob.BlobFileMeta {
	return g.outputs
}

// ColumnFamilyID returns the column family the task collects.
func (g *BlobGC) ColumnFamilyID() uint32 {
	return g.cfID
}

// CFOptions returns the column family configuration the task was picked
// under.
func (g *BlobGC) CFOptions() *options.CFOptions {
	return g.cfOptions
}

// MaybeContinueNextTime reports whether eligible files remain beyond this
// task's batch and the scheduler should re-pick soon.
func (g *BlobGC) MaybeContinueNextTime() bool {
	return g.maybeContinueNextTime
}

// UsePunchHole reports whether the task reclaims space in place instead
// of rewriting.
func (g *BlobGC) UsePunchHole() bool {
	return g.punchHole
}

// MarkFilesBeingGC claims every input file for this task, keeping later
// pick rounds off them, and registers the running job with the storage.
// REQUIRES: registry mutex held
func (g *BlobGC) MarkFilesBeingGC() {
	g.storage.StartGCJob()
	for _, file := range g.inputs {
		stats.MeasureTime(g.statistics, stats.HistogramGCInputFileSize, file.FileSize())
		if err := file.FileStateTransit(blob.FileEventGCBegin); err != nil {
			g.logger.Errorf("blob file %d: %v", file.FileNumber(), err)
		}
	}
}

// AddOutputFile registers a file the rewrite produced. The meta is shared
// with the manifest edit that will add it to the registry.
func (g *BlobGC) AddOutputFile(file *blob.BlobFileMeta) {
	g.outputs = append(g.outputs, file)
}

// ReleaseGCFiles returns the task's files to the registry once the
// manifest edit has been applied: inputs that were not deleted and all
// outputs go back to state Normal, and the job is deregistered.
// REQUIRES: registry mutex held
func (g *BlobGC) ReleaseGCFiles() {
	for _, file := range g.inputs {
		if err := file.FileStateTransit(blob.FileEventGCCompleted); err != nil {
			g.logger.Errorf("blob file %d: %v", file.FileNumber(), err)
		}
	}
	for _, file := range g.outputs {
		if err := file.FileStateTransit(blob.FileEventGCCompleted); err != nil {
			g.logger.Errorf("blob file %d: %v", file.FileNumber(), err)
		}
	}
	g.storage.FinishGCJob()
}

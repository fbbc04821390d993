// edit_collector.go accumulates a batch of manifest edits and validates
// them before any of them touches the registry. Validation runs in two
// stages: AddEdit checks each edit against the others in the batch as it
// is queued, and Seal cross-checks the whole batch against the current
// registry state. Apply is only legal on a sealed collector, so a batch
// that fails validation never mutates in-memory state.
//
// Reference: Titan (tikv/titan)
//   - src/edit_collector.h
package fileset

import (
	"errors"
	"fmt"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/logging"
	"github.com/aalhour/titanyard/internal/manifest"
)

// EditCollector batches version edits for validation and application.
type EditCollector struct {
	logger logging.Logger

	hasNextFileNumber bool
	nextFileNumber    uint64
	columnFamilies    map[uint32]*cfEditCollector
	sealed            bool
}

// cfEditCollector tracks the files added and deleted for one column
// family across the batch.
type cfEditCollector struct {
	addedFiles   map[uint64]*blob.BlobFileMeta
	deletedFiles map[uint64]manifest.SequenceNumber
}

// NewEditCollector returns an empty collector.
func NewEditCollector(logger logging.Logger) *EditCollector {
	return &EditCollector{
		logger:         logging.OrDefault(logger),
		columnFamilies: make(map[uint32]*cfEditCollector),
	}
}

// AddEdit queues one edit, checking it against the edits already queued.
func (c *EditCollector) AddEdit(edit *manifest.VersionEdit) error {
	// Every encoded edit names a column family, including the global
	// records that only carry the allocation counter. Bind a column
	// family only when the edit actually touches its files.
	if len(edit.AddedFiles) > 0 || len(edit.DeletedFiles) > 0 {
		cf := c.columnFamilies[edit.ColumnFamilyID]
		if cf == nil {
			cf = &cfEditCollector{
				addedFiles:   make(map[uint64]*blob.BlobFileMeta),
				deletedFiles: make(map[uint64]manifest.SequenceNumber),
			}
			c.columnFamilies[edit.ColumnFamilyID] = cf
		}

		for _, file := range edit.AddedFiles {
			number := file.FileNumber()
			if _, ok := cf.addedFiles[number]; ok {
				return fmt.Errorf("%w: blob file %d has been added twice", manifest.ErrCorruption, number)
			}
			cf.addedFiles[number] = file
		}
		for _, deleted := range edit.DeletedFiles {
			if _, ok := cf.deletedFiles[deleted.FileNumber]; ok {
				return fmt.Errorf("%w: blob file %d has been deleted twice", manifest.ErrCorruption, deleted.FileNumber)
			}
			cf.deletedFiles[deleted.FileNumber] = deleted.ObsoleteSequence
		}
	}

	if edit.HasNextFileNumber {
		if edit.NextFileNumber < c.nextFileNumber {
			return fmt.Errorf("%w: edit has a smaller next file number %d than current %d",
				manifest.ErrCorruption, edit.NextFileNumber, c.nextFileNumber)
		}
		c.nextFileNumber = edit.NextFileNumber
		c.hasNextFileNumber = true
	}
	return nil
}

// Seal cross-checks the batch against the registry: a file must not be
// added if it already exists, and a deleted file must exist unless it is
// also added within the batch.
func (c *EditCollector) Seal(fileSet *BlobFileSet) error {
	for cfID, cf := range c.columnFamilies {
		storage := fileSet.GetBlobStorage(cfID)
		if storage == nil {
			c.logger.Errorf("column family %d not found when sealing", cfID)
			return fmt.Errorf("%w: column family %d", ErrColumnFamilyNotFound, cfID)
		}

		for number := range cf.addedFiles {
			if storage.FindFile(number) != nil {
				c.logger.Errorf("blob file %d has been added before", number)
				return fmt.Errorf("%w: blob file %d has been added before", manifest.ErrCorruption, number)
			}
		}
		for number := range cf.deletedFiles {
			if _, ok := cf.addedFiles[number]; ok {
				continue
			}
			if storage.FindFile(number) == nil {
				c.logger.Errorf("blob file %d doesn't exist before", number)
				return fmt.Errorf("%w: blob file %d doesn't exist before", manifest.ErrCorruption, number)
			}
		}
	}
	c.sealed = true
	return nil
}

// Apply installs the batch into the registry and recomputes the GC scores
// of every touched column family. A file both added and deleted within
// the batch is skipped entirely.
// REQUIRES: Seal succeeded
func (c *EditCollector) Apply(fileSet *BlobFileSet) error {
	if !c.sealed {
		return errors.New("fileset: apply on unsealed edit collector")
	}
	for cfID, cf := range c.columnFamilies {
		storage := fileSet.GetBlobStorage(cfID)
		if storage == nil {
			return fmt.Errorf("%w: column family %d", ErrColumnFamilyNotFound, cfID)
		}

		for number, file := range cf.addedFiles {
			if _, ok := cf.deletedFiles[number]; ok {
				continue
			}
			storage.AddBlobFile(file)
		}
		for number, sequence := range cf.deletedFiles {
			if _, ok := cf.addedFiles[number]; ok {
				continue
			}
			if !storage.MarkFileObsolete(number, sequence) {
				return fmt.Errorf("%w: blob file %d", ErrFileNotFound, number)
			}
		}
		storage.ComputeGCScore()
	}
	return nil
}

// NextFileNumber returns the largest next-file-number carried by the
// batch. A recovered manifest that never recorded one is corrupt.
func (c *EditCollector) NextFileNumber() (uint64, error) {
	if !c.hasNextFileNumber {
		return 0, fmt.Errorf("%w: no next file number in manifest file", manifest.ErrCorruption)
	}
	return c.nextFileNumber, nil
}

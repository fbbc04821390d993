// Package manifest provides encoding and decoding for blob MANIFEST records.
//
// The MANIFEST file is an append-only log of VersionEdit records describing
// changes to the set of live blob files: files added by flush, compaction or
// GC, and files logically deleted at an obsolete sequence number. Replaying
// the log rebuilds the registry on open.
//
// Reference: Titan (tikv/titan)
//   - src/version_edit.h (Tag enum)
//   - src/version_edit.cc
package manifest

// Tag identifies a serialized VersionEdit field.
// These numbers are written to disk and MUST NOT change.
type Tag uint32

const (
	// TagNextFileNumber records the next file number to allocate.
	TagNextFileNumber Tag = 1

	// Tag 2 was used for a job id (deprecated).

	// TagColumnFamilyID identifies the column family the edit applies to.
	TagColumnFamilyID Tag = 10

	// TagAddedBlobFile is the legacy added-file record: file number and
	// size only, without entry count, level or key range.
	TagAddedBlobFile Tag = 11

	// TagDeletedBlobFile is the legacy deleted-file record, without the
	// obsolete sequence number.
	TagDeletedBlobFile Tag = 12

	// TagAddedBlobFileV2 is the current added-file record carrying the
	// full file meta including the smallest and largest keys.
	TagAddedBlobFileV2 Tag = 13

	// TagDeletedBlobFileV2 is the current deleted-file record carrying
	// the obsolete sequence number alongside the file number.
	TagDeletedBlobFileV2 Tag = 14
)

// version_edit.go implements VersionEdit encoding and decoding.
//
// A VersionEdit describes one atomic change to the blob file registry. It
// is serialized into the MANIFEST log and replayed during recovery.
//
// Reference: Titan (tikv/titan)
//   - src/version_edit.h
//   - src/version_edit.cc
package manifest

import (
	"errors"
	"fmt"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/encoding"
)

// ErrCorruption is returned when a VersionEdit cannot be decoded.
var ErrCorruption = errors.New("manifest: corruption")

// SequenceNumber is a sequence number of the host engine. Deleted blob
// files carry the sequence at which they became invisible; a file may be
// physically removed only once the oldest live snapshot has passed it.
type SequenceNumber uint64

// DeletedFileEntry records the logical deletion of a blob file.
type DeletedFileEntry struct {
	FileNumber       uint64
	ObsoleteSequence SequenceNumber
}

// VersionEdit is a single edit to the blob file registry of one column
// family.
type VersionEdit struct {
	NextFileNumber    uint64
	HasNextFileNumber bool

	ColumnFamilyID uint32

	AddedFiles   []*blob.BlobFileMeta
	DeletedFiles []DeletedFileEntry
}

// NewVersionEdit creates a new empty VersionEdit.
func NewVersionEdit() *VersionEdit {
	return &VersionEdit{}
}

// Clear resets the VersionEdit to its initial state.
func (ve *VersionEdit) Clear() {
	*ve = VersionEdit{}
}

// SetNextFileNumber sets the next file number to allocate.
func (ve *VersionEdit) SetNextFileNumber(num uint64) {
	ve.NextFileNumber = num
	ve.HasNextFileNumber = true
}

// SetColumnFamilyID sets the column family the edit applies to.
func (ve *VersionEdit) SetColumnFamilyID(id uint32) {
	ve.ColumnFamilyID = id
}

// AddBlobFile records a new live blob file.
func (ve *VersionEdit) AddBlobFile(file *blob.BlobFileMeta) {
	ve.AddedFiles = append(ve.AddedFiles, file)
}

// DeleteBlobFile records the logical deletion of a blob file at the given
// obsolete sequence.
func (ve *VersionEdit) DeleteBlobFile(fileNumber uint64, obsoleteSequence SequenceNumber) {
	ve.DeletedFiles = append(ve.DeletedFiles, DeletedFileEntry{
		FileNumber:       fileNumber,
		ObsoleteSequence: obsoleteSequence,
	})
}

// EncodeTo appends the serialized edit to dst and returns the result.
// Added and deleted files are written with the V2 tags.
func (ve *VersionEdit) EncodeTo(dst []byte) []byte {
	if ve.HasNextFileNumber {
		dst = encoding.AppendVarint32(dst, uint32(TagNextFileNumber))
		dst = encoding.AppendVarint64(dst, ve.NextFileNumber)
	}

	dst = encoding.AppendVarint32(dst, uint32(TagColumnFamilyID))
	dst = encoding.AppendVarint32(dst, ve.ColumnFamilyID)

	for _, file := range ve.AddedFiles {
		dst = encoding.AppendVarint32(dst, uint32(TagAddedBlobFileV2))
		dst = file.EncodeTo(dst)
	}
	for _, file := range ve.DeletedFiles {
		dst = encoding.AppendVarint32(dst, uint32(TagDeletedBlobFileV2))
		dst = encoding.AppendVarint64(dst, file.FileNumber)
		dst = encoding.AppendVarint64(dst, uint64(file.ObsoleteSequence))
	}
	return dst
}

// DecodeFrom decodes a VersionEdit from data. Legacy records are accepted:
// files added with TagAddedBlobFile carry number and size only, and files
// deleted with TagDeletedBlobFile get a zero obsolete sequence.
func (ve *VersionEdit) DecodeFrom(data []byte) error {
	ve.Clear()

	src := encoding.NewSlice(data)
	for src.Remaining() > 0 {
		tag, ok := src.GetVarint32()
		if !ok {
			return fmt.Errorf("%w: invalid tag", ErrCorruption)
		}

		switch Tag(tag) {
		case TagNextFileNumber:
			num, ok := src.GetVarint64()
			if !ok {
				return fmt.Errorf("%w: next file number", ErrCorruption)
			}
			ve.NextFileNumber = num
			ve.HasNextFileNumber = true

		case TagColumnFamilyID:
			id, ok := src.GetVarint32()
			if !ok {
				return fmt.Errorf("%w: column family id", ErrCorruption)
			}
			ve.ColumnFamilyID = id

		case TagAddedBlobFile:
			file := &blob.BlobFileMeta{}
			if err := file.DecodeFromLegacy(src); err != nil {
				return fmt.Errorf("%w: added blob file: %v", ErrCorruption, err)
			}
			ve.AddedFiles = append(ve.AddedFiles, file)

		case TagAddedBlobFileV2:
			file := &blob.BlobFileMeta{}
			if err := file.DecodeFrom(src); err != nil {
				return fmt.Errorf("%w: added blob file: %v", ErrCorruption, err)
			}
			ve.AddedFiles = append(ve.AddedFiles, file)

		case TagDeletedBlobFile:
			num, ok := src.GetVarint64()
			if !ok {
				return fmt.Errorf("%w: deleted blob file", ErrCorruption)
			}
			ve.DeletedFiles = append(ve.DeletedFiles, DeletedFileEntry{FileNumber: num})

		case TagDeletedBlobFileV2:
			num, ok := src.GetVarint64()
			if !ok {
				return fmt.Errorf("%w: deleted blob file", ErrCorruption)
			}
			seq, ok := src.GetVarint64()
			if !ok {
				return fmt.Errorf("%w: deleted blob file obsolete sequence", ErrCorruption)
			}
			ve.DeletedFiles = append(ve.DeletedFiles, DeletedFileEntry{
				FileNumber:       num,
				ObsoleteSequence: SequenceNumber(seq),
			})

		default:
			return fmt.Errorf("%w: unknown tag %d", ErrCorruption, tag)
		}
	}
	return nil
}

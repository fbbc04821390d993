package fileset

import (
	"reflect"
	"testing"

	"github.com/aalhour/titanyard/internal/blob"
	"github.com/aalhour/titanyard/internal/options"
)

func newTestStorage(cfOptions *options.CFOptions) *BlobStorage {
	return NewBlobStorage("", 0, cfOptions, nil, nil)
}

// normalMeta returns a meta in state Normal, as a file handed over by a
// flush would be.
func normalMeta(t *testing.T, number, size uint64, smallest, largest string) *blob.BlobFileMeta {
	t.Helper()
	meta := blob.NewBlobFileMeta(number, size, 10, 0, []byte(smallest), []byte(largest))
	if err := meta.FileStateTransit(blob.FileEventFlushOrCompactionOutput); err != nil {
		t.Fatalf("FileStateTransit() error = %v", err)
	}
	return meta
}

func TestBlobStorageAddAndFind(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	meta := normalMeta(t, 1, 64<<20, "a", "z")
	storage.AddBlobFile(meta)

	if got := storage.FindFile(1); got != meta {
		t.Errorf("FindFile(1) = %v, want %v", got, meta)
	}
	if got := storage.FindFile(2); got != nil {
		t.Errorf("FindFile(2) = %v, want nil", got)
	}
	if n := storage.NumBlobFiles(); n != 1 {
		t.Errorf("NumBlobFiles() = %d, want 1", n)
	}

	exported := storage.ExportBlobFiles()
	delete(exported, 1)
	if storage.FindFile(1) == nil {
		t.Error("mutating the exported map reached the storage")
	}
}

func TestBlobStorageMarkFileObsolete(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	meta := normalMeta(t, 1, 64<<20, "a", "z")
	storage.AddBlobFile(meta)

	if !storage.MarkFileObsolete(1, 10) {
		t.Fatal("MarkFileObsolete(1) = false, want true")
	}
	if storage.MarkFileObsolete(2, 10) {
		t.Error("MarkFileObsolete(2) = true for unknown file")
	}
	if !meta.IsObsolete() {
		t.Error("IsObsolete() = false after mark")
	}
	if n := storage.NumObsoleteBlobFiles(); n != 1 {
		t.Errorf("NumObsoleteBlobFiles() = %d, want 1", n)
	}
	// Still tracked until physically removed.
	if storage.FindFile(1) == nil {
		t.Error("obsolete file dropped before physical deletion")
	}
}

func TestBlobStorageGetObsoleteFiles(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	storage.AddBlobFile(normalMeta(t, 1, 64<<20, "a", "c"))
	storage.AddBlobFile(normalMeta(t, 2, 64<<20, "d", "f"))
	storage.MarkFileObsolete(1, 5)
	storage.MarkFileObsolete(2, 10)

	// No snapshot has passed either file yet.
	if got := storage.GetObsoleteFiles(5); len(got) != 0 {
		t.Errorf("GetObsoleteFiles(5) = %v, want none", got)
	}

	got := storage.GetObsoleteFiles(8)
	want := []string{BlobFileName("", 1)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetObsoleteFiles(8) = %v, want %v", got, want)
	}
	if storage.FindFile(1) != nil {
		t.Error("purged file still tracked")
	}
	if storage.FindFile(2) == nil {
		t.Error("held-back file was dropped")
	}
	if n := storage.NumObsoleteBlobFiles(); n != 1 {
		t.Errorf("NumObsoleteBlobFiles() = %d, want 1", n)
	}

	got = storage.GetObsoleteFiles(11)
	want = []string{BlobFileName("", 2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetObsoleteFiles(11) = %v, want %v", got, want)
	}
	if got := storage.GetObsoleteFiles(100); len(got) != 0 {
		t.Errorf("GetObsoleteFiles(100) = %v after drain, want none", got)
	}
	if n := storage.NumBlobFiles(); n != 0 {
		t.Errorf("NumBlobFiles() = %d, want 0", n)
	}
}

func TestBlobStorageGetBlobFilesInRanges(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	storage.AddBlobFile(normalMeta(t, 1, 64<<20, "a", "c"))
	storage.AddBlobFile(normalMeta(t, 2, 64<<20, "c", "e"))
	storage.AddBlobFile(normalMeta(t, 3, 64<<20, "f", "h"))
	storage.AddBlobFile(normalMeta(t, 4, 64<<20, "x", "z"))

	tests := []struct {
		name       string
		ranges     []KeyRange
		includeEnd bool
		want       []uint64
	}{
		{"whole keyspace", []KeyRange{{}}, false, []uint64{1, 2, 3, 4}},
		{"exclusive end", []KeyRange{{Start: []byte("a"), Limit: []byte("e")}}, false, []uint64{1}},
		{"inclusive end", []KeyRange{{Start: []byte("a"), Limit: []byte("e")}}, true, []uint64{1, 2}},
		{"interior", []KeyRange{{Start: []byte("b"), Limit: []byte("i")}}, false, []uint64{2, 3}},
		{"unbounded start", []KeyRange{{Limit: []byte("c")}}, true, []uint64{1}},
		{"unbounded end", []KeyRange{{Start: []byte("f")}}, false, []uint64{3, 4}},
		{"two ranges", []KeyRange{
			{Start: []byte("a"), Limit: []byte("d")},
			{Start: []byte("w")},
		}, false, []uint64{1, 4}},
		{"no contained file", []KeyRange{{Start: []byte("m"), Limit: []byte("p")}}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storage.GetBlobFilesInRanges(tt.ranges, tt.includeEnd)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetBlobFilesInRanges(%v, %v) = %v, want %v",
					tt.ranges, tt.includeEnd, got, tt.want)
			}
		})
	}

	// Obsolete files and legacy metas without key bounds never match.
	storage.MarkFileObsolete(1, 5)
	storage.AddBlobFile(blob.NewBlobFileMeta(9, 1<<20, 1, 0, nil, nil))
	got := storage.GetBlobFilesInRanges([]KeyRange{{}}, false)
	if want := []uint64{2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetBlobFilesInRanges() = %v, want %v", got, want)
	}
}

func TestBlobStorageComputeGCScore(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())

	big := normalMeta(t, 1, 64<<20, "a", "b")
	big.AddDiscardableSize(48 << 20) // ratio 0.75
	low := normalMeta(t, 2, 64<<20, "c", "d")
	low.AddDiscardableSize(16 << 20) // ratio 0.25
	small := normalMeta(t, 3, 4<<20, "e", "f")
	small.AddDiscardableSize(1 << 20) // ratio 0.25, boosted to 0.5
	pending := blob.NewBlobFileMeta(4, 64<<20, 10, 0, []byte("g"), []byte("h"))
	dead := normalMeta(t, 5, 64<<20, "i", "j")
	lowTie := normalMeta(t, 7, 64<<20, "k", "l")
	lowTie.AddDiscardableSize(16 << 20) // ratio 0.25

	for _, meta := range []*blob.BlobFileMeta{big, low, small, pending, dead, lowTie} {
		storage.AddBlobFile(meta)
	}
	storage.MarkFileObsolete(5, 1)
	storage.ComputeGCScore()

	// Best candidates first; small files are boosted to the eligibility
	// threshold; ties break on file number; files not in state Normal are
	// invisible.
	want := []GCScore{
		{FileNumber: 1, Score: 0.75},
		{FileNumber: 3, Score: 0.5},
		{FileNumber: 2, Score: 0.25},
		{FileNumber: 7, Score: 0.25},
	}
	got := storage.GCScores()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GCScores() = %v, want %v", got, want)
	}
	if punch := storage.PunchHoleScores(); len(punch) != 0 {
		t.Errorf("PunchHoleScores() = %v without hole-punching, want none", punch)
	}

	// Returned scores are a snapshot; a recompute must not change them.
	big.AddDiscardableSize(8 << 20)
	storage.ComputeGCScore()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot changed after recompute: %v", got)
	}
}

func TestBlobStorageComputePunchHoleScore(t *testing.T) {
	cfOptions := options.DefaultCFOptions()
	cfOptions.PunchHoleThreshold = 64 << 10
	storage := newTestStorage(cfOptions)

	big := normalMeta(t, 1, 64<<20, "a", "b")
	big.AddDiscardableSize(48 << 20) // ratio 0.75
	low := normalMeta(t, 2, 64<<20, "c", "d")
	low.AddDiscardableSize(16 << 20) // ratio 0.25
	small := normalMeta(t, 3, 4<<20, "e", "f")
	small.AddDiscardableSize(1 << 20) // ratio 0.25, no boost here
	for _, meta := range []*blob.BlobFileMeta{big, low, small} {
		storage.AddBlobFile(meta)
	}
	storage.ComputeGCScore()

	// Least-dead files first: hole-punching walks from the coldest file
	// and stops early, the opposite of the rewrite ranking.
	want := []GCScore{
		{FileNumber: 2, Score: 0.25},
		{FileNumber: 3, Score: 0.25},
		{FileNumber: 1, Score: 0.75},
	}
	if got := storage.PunchHoleScores(); !reflect.DeepEqual(got, want) {
		t.Errorf("PunchHoleScores() = %v, want %v", got, want)
	}
	// The small-file boost applies only to the rewrite ranking.
	if got := storage.GCScores(); got[0].FileNumber != 1 || got[0].Score != 0.75 {
		t.Errorf("GCScores()[0] = %v, want {1 0.75}", got[0])
	}
}

func TestBlobStorageMarkAllFilesForGC(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	m1 := blob.NewBlobFileMeta(1, 64<<20, 10, 0, []byte("a"), []byte("c"))
	m2 := blob.NewBlobFileMeta(2, 64<<20, 10, 0, []byte("d"), []byte("f"))
	storage.AddBlobFile(m1)
	storage.AddBlobFile(m2)

	storage.MarkAllFilesForGC()
	if m1.FileState() != blob.FileStateNormal || m2.FileState() != blob.FileStateNormal {
		t.Errorf("states = %v, %v, want Normal", m1.FileState(), m2.FileState())
	}
}

func TestBlobStorageMaybeRemove(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	storage.AddBlobFile(normalMeta(t, 1, 64<<20, "a", "z"))

	if storage.MaybeRemove() {
		t.Error("MaybeRemove() = true before destroy")
	}
	storage.MarkFileObsolete(1, 5)
	storage.MarkDestroyed()
	if storage.MaybeRemove() {
		t.Error("MaybeRemove() = true with obsolete files pending")
	}

	storage.GetObsoleteFiles(10)
	storage.StartGCJob()
	if storage.MaybeRemove() {
		t.Error("MaybeRemove() = true with a GC job running")
	}
	storage.FinishGCJob()
	if !storage.MaybeRemove() {
		t.Error("MaybeRemove() = false when drained")
	}
}

func TestBlobStorageGetAllFiles(t *testing.T) {
	storage := newTestStorage(options.DefaultCFOptions())
	storage.AddBlobFile(normalMeta(t, 1, 64<<20, "a", "c"))
	storage.AddBlobFile(normalMeta(t, 2, 64<<20, "d", "f"))
	storage.MarkFileObsolete(1, 5)

	got := sortedStrings(storage.GetAllFiles(nil))
	want := sortedStrings([]string{BlobFileName("", 1), BlobFileName("", 2)})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetAllFiles() = %v, want %v", got, want)
	}
}

package testutil

// Sync point names compiled into the core. Plain string constants, so
// they cost nothing in production builds.
//
// Naming convention follows RocksDB: "Component::Function:Location".
const (
	// Blob file set / MANIFEST
	SPBlobFileSetOpen            = "BlobFileSet::Open:Start"
	SPBlobFileSetRecover         = "BlobFileSet::Recover:Start"
	SPBlobFileSetLogAndApply     = "BlobFileSet::LogAndApply:Start"
	SPBlobFileSetLogAndApplyDone = "BlobFileSet::LogAndApply:Complete"

	// GC picking
	SPGCPickStart    = "BlobGCPicker::PickBlobGC:Start"
	SPGCPickComplete = "BlobGCPicker::PickBlobGC:Complete"
)

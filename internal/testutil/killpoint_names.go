package testutil

// KillPointEnvVar names the environment variable a crash test harness
// sets to pick the kill point of a child process.
const KillPointEnvVar = "TITANYARD_KILL_POINT"

// Kill point names compiled into the core. The naming convention follows
// RocksDB: "Component.Operation:N" with N=0 before the operation and N=1
// after it.
const (
	// MANIFEST writes
	KPManifestWrite0 = "Manifest.Write:0"
	KPManifestSync0  = "Manifest.Sync:0"
	KPManifestSync1  = "Manifest.Sync:1"

	// CURRENT pointer update
	KPCurrentWrite0 = "Current.Write:0"
	KPCurrentWrite1 = "Current.Write:1"

	// Database directory fsync
	KPDirSync0 = "Dir.Sync:0"
	KPDirSync1 = "Dir.Sync:1"
)

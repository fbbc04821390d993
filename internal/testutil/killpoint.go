//go:build crashtest

// Kill points terminate the process at a named location to simulate a
// crash. A harness sets the target by name (or through the
// TITANYARD_KILL_POINT environment variable for child processes), runs
// the workload, and verifies recovery after the exit. Where sync points
// pause execution, kill points end it.
//
// Reference: RocksDB v10.7.5
//   - test_util/sync_point.h (TEST_KILL_RANDOM macros)
//   - tools/db_crashtest.py (whitebox mode)
package testutil

import (
	"os"
	"sync"
	"sync/atomic"
)

// killPointState is the process-wide kill point configuration.
type killPointState struct {
	// target names the kill point that exits the process. Empty means
	// none is set.
	target atomic.Value // string

	// armed gates all kill point processing. Disarming keeps the
	// target so it can be re-armed later.
	armed atomic.Bool

	mu        sync.RWMutex
	hitCounts map[string]int64
}

var globalKillPoint = &killPointState{
	hitCounts: make(map[string]int64),
}

func init() {
	if target := os.Getenv(KillPointEnvVar); target != "" {
		globalKillPoint.target.Store(target)
		globalKillPoint.armed.Store(true)
	}
}

// SetKillPoint arms the named kill point. The next MaybeKill with this
// name exits the process.
func SetKillPoint(name string) {
	globalKillPoint.target.Store(name)
	globalKillPoint.armed.Store(true)
}

// ClearKillPoint drops the target and disarms.
func ClearKillPoint() {
	globalKillPoint.target.Store("")
	globalKillPoint.armed.Store(false)
}

// ArmKillPoint enables kill point processing.
func ArmKillPoint() {
	globalKillPoint.armed.Store(true)
}

// DisarmKillPoint disables kill point processing, keeping the target.
func DisarmKillPoint() {
	globalKillPoint.armed.Store(false)
}

// IsKillPointArmed reports whether kill points are processed.
func IsKillPointArmed() bool {
	return globalKillPoint.armed.Load()
}

// GetKillPointTarget returns the armed kill point name, or "".
func GetKillPointTarget() string {
	if v := globalKillPoint.target.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// GetKillPointHitCount returns how many times a kill point was reached
// while armed.
func GetKillPointHitCount(name string) int64 {
	globalKillPoint.mu.RLock()
	defer globalKillPoint.mu.RUnlock()
	return globalKillPoint.hitCounts[name]
}

// ResetKillPointCounts zeroes all hit counts.
func ResetKillPointCounts() {
	globalKillPoint.mu.Lock()
	defer globalKillPoint.mu.Unlock()
	globalKillPoint.hitCounts = make(map[string]int64)
}

// MaybeKill exits the process if the named kill point is the armed
// target. Exit code 0: the harness distinguishes an intentional kill
// from a real failure.
func MaybeKill(name string) {
	if !globalKillPoint.armed.Load() {
		return
	}

	globalKillPoint.mu.Lock()
	globalKillPoint.hitCounts[name]++
	globalKillPoint.mu.Unlock()

	target, ok := globalKillPoint.target.Load().(string)
	if !ok || target == "" {
		return
	}
	if target == name {
		os.Exit(0)
	}
}

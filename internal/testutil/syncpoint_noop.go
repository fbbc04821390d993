//go:build !synctest

// Package testutil provides the test-only hooks compiled into the core:
// sync points for coordinating concurrent tests and kill points for
// whitebox crash testing.
//
// Without the synctest build tag the sync point hooks below compile to
// nothing, so production code can call SP unconditionally.
package testutil

// SP is a no-op in production builds.
func SP(_ string) error { return nil }

// ProcessSyncPoint is a no-op in production builds.
func ProcessSyncPoint(_ string) error { return nil }

// EnableSyncPoints is a no-op in production builds.
func EnableSyncPoints() *SyncPointManager { return nil }

// DisableSyncPoints is a no-op in production builds.
func DisableSyncPoints() {}

// SyncPointManager carries no state in production builds. The real
// implementation requires the synctest build tag.
type SyncPointManager struct{}

//go:build synctest

// Package testutil provides the test-only hooks compiled into the core:
// sync points for coordinating concurrent tests and kill points for
// whitebox crash testing.
//
// A sync point is a named location in production code. With the synctest
// build tag a test can attach behavior to that name: run a callback,
// inject an error, hold execution until released, or order two goroutines
// against each other. Without the tag every hook is a no-op.
//
// Reference: RocksDB v10.7.5
//   - test_util/sync_point.h
//   - test_util/sync_point_impl.cc
package testutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// SyncPointCallback runs when its sync point is reached. A non-nil error
// is handed to the code passing the point.
type SyncPointCallback func(name string) error

// SyncPointDependency orders two points: After does not pass until Before
// has been hit at least once.
type SyncPointDependency struct {
	Before string
	After  string
}

// syncPoint is the state of one named point.
type syncPoint struct {
	callbacks []SyncPointCallback
	inject    error
	hits      int64

	// hit is closed on the first pass through the point; dependency
	// waiters block on it.
	hit chan struct{}

	// gate, while non-nil, holds every arrival until the point is
	// cleared.
	gate chan struct{}

	// waitFor names the points that must be hit before this one passes.
	waitFor []string
}

// SyncPointManager owns the sync point table of one test. A zero table
// processes nothing; points spring into existence when configured or
// first passed.
type SyncPointManager struct {
	mu      sync.Mutex
	points  map[string]*syncPoint
	enabled atomic.Bool
}

// NewSyncPointManager creates an empty, disabled manager.
func NewSyncPointManager() *SyncPointManager {
	return &SyncPointManager{points: make(map[string]*syncPoint)}
}

// point returns the record for name, creating it if needed.
// REQUIRES: m.mu held
func (m *SyncPointManager) point(name string) *syncPoint {
	p := m.points[name]
	if p == nil {
		p = &syncPoint{hit: make(chan struct{})}
		m.points[name] = p
	}
	return p
}

// EnableProcessing turns the manager on. Points passed while disabled are
// not counted.
func (m *SyncPointManager) EnableProcessing() { m.enabled.Store(true) }

// DisableProcessing turns the manager off.
func (m *SyncPointManager) DisableProcessing() { m.enabled.Store(false) }

// IsEnabled reports whether the manager processes points.
func (m *SyncPointManager) IsEnabled() bool { return m.enabled.Load() }

// SetCallback attaches a callback to a point. Multiple callbacks run in
// registration order.
func (m *SyncPointManager) SetCallback(name string, callback SyncPointCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.point(name)
	p.callbacks = append(p.callbacks, callback)
}

// ClearCallback removes every callback of a point.
func (m *SyncPointManager) ClearCallback(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.point(name).callbacks = nil
}

// SetErrorInjection makes the point return err to the code passing it.
func (m *SyncPointManager) SetErrorInjection(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.point(name).inject = err
}

// ClearErrorInjection removes the injected error of a point.
func (m *SyncPointManager) ClearErrorInjection(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.point(name).inject = nil
}

// LoadDependency installs ordering constraints between points.
func (m *SyncPointManager) LoadDependency(dependencies []SyncPointDependency) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dep := range dependencies {
		after := m.point(dep.After)
		after.waitFor = append(after.waitFor, dep.Before)
		m.point(dep.Before) // materialize so its hit channel exists
	}
}

// ClearDependency removes the ordering constraints of a point.
func (m *SyncPointManager) ClearDependency(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.point(name).waitFor = nil
}

// BlockSyncPoint arms a gate: every goroutine passing the point waits
// until ClearSyncPoint.
func (m *SyncPointManager) BlockSyncPoint(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.point(name)
	if p.gate == nil {
		p.gate = make(chan struct{})
	}
}

// ClearSyncPoint opens the gate of a point and lets future arrivals pass.
func (m *SyncPointManager) ClearSyncPoint(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.point(name)
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}

// ClearAllSyncPoints opens every armed gate.
func (m *SyncPointManager) ClearAllSyncPoints() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.points {
		if p.gate != nil {
			close(p.gate)
			p.gate = nil
		}
	}
}

// GetHitCount returns how many times a point has been passed.
func (m *SyncPointManager) GetHitCount(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.points[name]; p != nil {
		return p.hits
	}
	return 0
}

// WaitUntilHit waits for a point to be passed at least once. Returns
// false if the timeout elapses first.
func (m *SyncPointManager) WaitUntilHit(name string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.GetHitCount(name) > 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// Reset drops every point and disables the manager.
func (m *SyncPointManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.points {
		if p.gate != nil {
			close(p.gate)
		}
	}
	m.points = make(map[string]*syncPoint)
	m.enabled.Store(false)
}

// Process passes the named point: wait out dependencies and the gate,
// count the hit, run callbacks, and surface any injected error.
func (m *SyncPointManager) Process(name string) error {
	if !m.enabled.Load() {
		return nil
	}

	m.mu.Lock()
	p := m.point(name)
	waitFor := make([]chan struct{}, 0, len(p.waitFor))
	for _, dep := range p.waitFor {
		waitFor = append(waitFor, m.point(dep).hit)
	}
	gate := p.gate
	m.mu.Unlock()

	for _, ch := range waitFor {
		<-ch
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	p.hits++
	select {
	case <-p.hit:
	default:
		close(p.hit)
	}
	callbacks := append([]SyncPointCallback(nil), p.callbacks...)
	inject := p.inject
	m.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(name); err != nil {
			return err
		}
	}
	return inject
}

// globalSyncPointManager routes SP calls in production code to the
// manager of the running test.
var globalSyncPointManager atomic.Pointer[SyncPointManager]

// SetGlobal routes SP calls to this manager.
func (m *SyncPointManager) SetGlobal() {
	globalSyncPointManager.Store(m)
}

// ClearGlobal detaches the global manager.
func ClearGlobal() {
	globalSyncPointManager.Store(nil)
}

// SyncPointProcess passes a point on the global manager, if one is set.
func SyncPointProcess(name string) error {
	m := globalSyncPointManager.Load()
	if m == nil {
		return nil
	}
	return m.Process(name)
}

// SyncPointEnabled short-circuits SP when no test is using sync points.
var SyncPointEnabled = false

// SP is the hook called from production code. It is a no-op unless a
// test has enabled sync points.
func SP(name string) error {
	if !SyncPointEnabled {
		return nil
	}
	return SyncPointProcess(name)
}

// ProcessSyncPoint is the long-form name of SP.
func ProcessSyncPoint(name string) error {
	return SP(name)
}

// EnableSyncPoints creates a fresh manager, enables it and installs it
// globally. The usual first line of a sync point test.
func EnableSyncPoints() *SyncPointManager {
	m := NewSyncPointManager()
	m.EnableProcessing()
	m.SetGlobal()
	SyncPointEnabled = true
	return m
}

// DisableSyncPoints detaches and silences sync point processing.
func DisableSyncPoints() {
	SyncPointEnabled = false
	ClearGlobal()
}

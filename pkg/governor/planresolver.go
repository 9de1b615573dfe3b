package governor

import (
	"sync"

	"github.com/governedloop/core/pkg/eventmanager"
)

// PlanStore is the concrete PlanResolver wired into cmd/loopcore: a
// per-loop registry of PlanInstance + Snapshot, mutated by whatever
// decomposes a loop's work_unit into a plan (out of this module's
// scope per SPEC_FULL.md §3.11, which specifies eligibility
// computation over a PlanInstance but not how one is decomposed) and
// by iteration bookkeeping as work units move through DONE/
// IN_PROGRESS/stale. Structurally grounded on pkg/worksurface's
// single-mutex, map-backed registry shape.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]eventmanager.PlanInstance
	snaps map[string]eventmanager.Snapshot
}

// NewPlanStore constructs an empty PlanStore.
func NewPlanStore() *PlanStore {
	return &PlanStore{
		plans: make(map[string]eventmanager.PlanInstance),
		snaps: make(map[string]eventmanager.Snapshot),
	}
}

// SetPlan registers or replaces the PlanInstance for loopID.
func (s *PlanStore) SetPlan(loopID string, plan eventmanager.PlanInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[loopID] = plan
	if _, ok := s.snaps[loopID]; !ok {
		s.snaps[loopID] = eventmanager.Snapshot{
			Done:       make(map[string]bool),
			InProgress: make(map[string]bool),
			Stale:      make(map[string]bool),
			Blocked:    make(map[string]bool),
		}
	}
}

// MarkDone records unitID as DONE for loopID, clearing any
// in-progress marker.
func (s *PlanStore) MarkDone(loopID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(loopID)
	snap.Done[unitID] = true
	delete(snap.InProgress, unitID)
	s.snaps[loopID] = snap
}

// MarkInProgress records unitID as IN_PROGRESS for loopID.
func (s *PlanStore) MarkInProgress(loopID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(loopID)
	snap.InProgress[unitID] = true
	s.snaps[loopID] = snap
}

// MarkStale records unitID as carrying an unresolved staleness marker
// for loopID.
func (s *PlanStore) MarkStale(loopID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(loopID)
	snap.Stale[unitID] = true
	s.snaps[loopID] = snap
}

// ClearStale resolves a previously-marked staleness entry.
func (s *PlanStore) ClearStale(loopID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(loopID)
	delete(snap.Stale, unitID)
	s.snaps[loopID] = snap
}

// MarkBlocked records unitID as BLOCKED for loopID — e.g. its
// iteration failed with no further retry scheduled, or an open
// exception gates it directly.
func (s *PlanStore) MarkBlocked(loopID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(loopID)
	snap.Blocked[unitID] = true
	s.snaps[loopID] = snap
}

// ClearBlocked resolves a previously-marked BLOCKED entry.
func (s *PlanStore) ClearBlocked(loopID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked(loopID)
	delete(snap.Blocked, unitID)
	s.snaps[loopID] = snap
}

func (s *PlanStore) snapshotLocked(loopID string) eventmanager.Snapshot {
	snap, ok := s.snaps[loopID]
	if !ok {
		snap = eventmanager.Snapshot{
			Done:       make(map[string]bool),
			InProgress: make(map[string]bool),
			Stale:      make(map[string]bool),
			Blocked:    make(map[string]bool),
		}
	}
	return snap
}

// Resolve implements PlanResolver.
func (s *PlanStore) Resolve(loopID string) (eventmanager.PlanInstance, eventmanager.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[loopID]
	if !ok {
		return eventmanager.PlanInstance{}, eventmanager.Snapshot{}, false
	}
	return plan, s.snaps[loopID], true
}

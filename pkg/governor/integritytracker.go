package governor

import "sync"

// IntegrityTracker is the concrete IntegrityLookup wired into
// cmd/loopcore: an in-memory index from loop id to the integrity
// conditions most recently observed for it. Whatever resolves an
// oracle run's evidence back to the loop that requested it (the
// worker bridge or a verification step) calls Record; SweepOnce reads
// it back via ConditionsFor. Same single-mutex, map-backed shape as
// PlanStore and pkg/worksurface.Registry.
type IntegrityTracker struct {
	mu         sync.RWMutex
	conditions map[string][]string
}

// NewIntegrityTracker constructs an empty IntegrityTracker.
func NewIntegrityTracker() *IntegrityTracker {
	return &IntegrityTracker{conditions: make(map[string][]string)}
}

// Record replaces the tracked integrity conditions for loopID.
func (t *IntegrityTracker) Record(loopID string, conditions []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(conditions) == 0 {
		delete(t.conditions, loopID)
		return
	}
	t.conditions[loopID] = conditions
}

// ConditionsFor implements IntegrityLookup.
func (t *IntegrityTracker) ConditionsFor(loopID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conditions[loopID]
}

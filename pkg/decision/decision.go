// Package decision implements the supplemented decision-precedent index
// (§9 Open Question 3): Decision records plus an advisory-only lookup of
// precedents by scope. Resolution recorded in DESIGN.md: precedents are
// never binding on a future decision, only surfaced as an annotation.
package decision

import "sync"

// Decision mirrors §3's Decision row.
type Decision struct {
	DecisionID  string
	Trigger     string
	Scope       string
	Outcome     string
	Rationale   string
	IsPrecedent bool
	Applicability string
}

// Index keeps Decision rows addressable by id and, for precedent
// lookups, grouped by scope.
type Index struct {
	mu         sync.RWMutex
	byID       map[string]Decision
	precedents map[string][]Decision // scope -> precedent decisions, insertion order
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{
		byID:       make(map[string]Decision),
		precedents: make(map[string][]Decision),
	}
}

// Record indexes d. Re-recording the same decision_id overwrites
// in-place (decisions are append-only at the event layer; this index
// is a read-model derived from DecisionRecorded events).
func (ix *Index) Record(d Decision) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	old, existed := ix.byID[d.DecisionID]
	ix.byID[d.DecisionID] = d
	if existed && old.IsPrecedent {
		list := ix.precedents[old.Scope]
		for i := range list {
			if list[i].DecisionID != d.DecisionID {
				continue
			}
			if d.IsPrecedent && d.Scope == old.Scope {
				list[i] = d
				return
			}
			ix.precedents[old.Scope] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if d.IsPrecedent {
		ix.precedents[d.Scope] = append(ix.precedents[d.Scope], d)
	}
}

// Get returns the decision by id.
func (ix *Index) Get(decisionID string) (Decision, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d, ok := ix.byID[decisionID]
	return d, ok
}

// PrecedentsFor returns the precedent decisions recorded for scope, in
// recording order. These are advisory annotations only — nothing in
// this package or pkg/verification treats them as binding on a new
// decision; a human reviewer is free to disregard them entirely.
func (ix *Index) PrecedentsFor(scope string) []Decision {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Decision, len(ix.precedents[scope]))
	copy(out, ix.precedents[scope])
	return out
}

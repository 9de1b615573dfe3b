// Package eventmanager implements the event manager and eligibility
// computation (§4.10): a pure projection of a PlanInstance's work-unit
// statuses and the derived eligible set workers poll.
package eventmanager

import "sort"

// WorkUnitStatus is one state of §4.10's TODO -> ELIGIBLE -> IN_PROGRESS
// -> DONE | BLOCKED machine.
type WorkUnitStatus string

const (
	StatusTodo       WorkUnitStatus = "TODO"
	StatusEligible   WorkUnitStatus = "ELIGIBLE"
	StatusInProgress WorkUnitStatus = "IN_PROGRESS"
	StatusDone       WorkUnitStatus = "DONE"
	StatusBlocked    WorkUnitStatus = "BLOCKED"
)

// WorkUnit is one node of a PlanInstance's work-unit plan.
type WorkUnit struct {
	ID string
}

// DependencyEdge records that Unit depends on DependsOn.
type DependencyEdge struct {
	Unit      string
	DependsOn string
}

// PlanInstance mirrors §3's PlanInstance row: an immutable commitment
// object with an acyclic dependency graph. DecompositionRationale is
// carried for audit only and never gates eligibility (§3 invariant).
type PlanInstance struct {
	PlanID                 string
	ContentHash            string
	WorkUnits              []WorkUnit
	Edges                  []DependencyEdge
	DecompositionRationale string
}

// Snapshot is the external state fed into ComputeStatuses: which units
// are already DONE or IN_PROGRESS, which currently carry an unresolved
// staleness marker, and which have been reported BLOCKED directly
// (e.g. an iteration against the unit failed with no further retry
// scheduled, or a governing exception gates it).
type Snapshot struct {
	Done       map[string]bool
	InProgress map[string]bool
	Stale      map[string]bool
	Blocked    map[string]bool
}

// ComputeStatuses derives every work unit's status from plan and
// snapshot — a pure function of the event prefix those inputs were
// themselves derived from (§8 invariant 15: eligible_set is stable
// across runs given the same event prefix).
//
// A unit with all dependencies DONE but itself carrying an unresolved
// staleness marker is held at TODO rather than promoted to ELIGIBLE:
// §4.4 requires "any gating computation... must treat [a stale node]
// as stale", and eligibility is exactly such a gating computation.
//
// BLOCKED is reached two ways: a unit reported blocked directly in
// snap.Blocked, or a unit that depends on one — BLOCKED propagates
// through the dependency graph the same way DONE does, so a whole
// downstream subtree is held rather than silently left at TODO.
// Propagation is computed as a fixpoint over plan.WorkUnits, bounded
// by len(plan.WorkUnits) since §3 requires the dependency graph be
// acyclic.
func ComputeStatuses(plan PlanInstance, snap Snapshot) map[string]WorkUnitStatus {
	deps := make(map[string][]string, len(plan.Edges))
	for _, e := range plan.Edges {
		deps[e.Unit] = append(deps[e.Unit], e.DependsOn)
	}

	statuses := make(map[string]WorkUnitStatus, len(plan.WorkUnits))
	for _, u := range plan.WorkUnits {
		statuses[u.ID] = StatusTodo
	}

	for range plan.WorkUnits {
		changed := false
		for _, u := range plan.WorkUnits {
			next := unitStatus(u, deps[u.ID], snap, statuses)
			if next != statuses[u.ID] {
				statuses[u.ID] = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return statuses
}

func unitStatus(u WorkUnit, deps []string, snap Snapshot, statuses map[string]WorkUnitStatus) WorkUnitStatus {
	switch {
	case snap.Done[u.ID]:
		return StatusDone
	case snap.InProgress[u.ID]:
		return StatusInProgress
	case snap.Blocked[u.ID] || anyBlocked(deps, statuses):
		return StatusBlocked
	case allDone(deps, snap.Done) && !snap.Stale[u.ID]:
		return StatusEligible
	default:
		return StatusTodo
	}
}

func anyBlocked(units []string, statuses map[string]WorkUnitStatus) bool {
	for _, id := range units {
		if statuses[id] == StatusBlocked {
			return true
		}
	}
	return false
}

func allDone(units []string, done map[string]bool) bool {
	for _, id := range units {
		if !done[id] {
			return false
		}
	}
	return true
}

// EligibleSet returns the sorted (by work-unit id) list of ELIGIBLE
// units — the set workers poll to select their next unit of work.
func EligibleSet(statuses map[string]WorkUnitStatus) []string {
	var out []string
	for id, status := range statuses {
		if status == StatusEligible {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

package eventmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linearPlan() PlanInstance {
	return PlanInstance{
		PlanID: "plan_1",
		WorkUnits: []WorkUnit{
			{ID: "wu_1"}, {ID: "wu_2"}, {ID: "wu_3"},
		},
		Edges: []DependencyEdge{
			{Unit: "wu_2", DependsOn: "wu_1"},
			{Unit: "wu_3", DependsOn: "wu_2"},
		},
	}
}

func TestComputeStatuses_RootWithNoDepsIsEligible(t *testing.T) {
	statuses := ComputeStatuses(linearPlan(), Snapshot{})
	assert.Equal(t, StatusEligible, statuses["wu_1"])
	assert.Equal(t, StatusTodo, statuses["wu_2"])
	assert.Equal(t, StatusTodo, statuses["wu_3"])
}

func TestComputeStatuses_DownstreamBecomesEligibleOnceDependencyDone(t *testing.T) {
	snap := Snapshot{Done: map[string]bool{"wu_1": true}}
	statuses := ComputeStatuses(linearPlan(), snap)
	assert.Equal(t, StatusDone, statuses["wu_1"])
	assert.Equal(t, StatusEligible, statuses["wu_2"])
	assert.Equal(t, StatusTodo, statuses["wu_3"])
}

func TestComputeStatuses_InProgressTakesPrecedenceOverEligible(t *testing.T) {
	snap := Snapshot{InProgress: map[string]bool{"wu_1": true}}
	statuses := ComputeStatuses(linearPlan(), snap)
	assert.Equal(t, StatusInProgress, statuses["wu_1"])
}

func TestComputeStatuses_StaleUnitWithDoneDependenciesIsNotEligible(t *testing.T) {
	snap := Snapshot{
		Done:  map[string]bool{"wu_1": true},
		Stale: map[string]bool{"wu_2": true},
	}
	statuses := ComputeStatuses(linearPlan(), snap)
	assert.Equal(t, StatusTodo, statuses["wu_2"])
}

func TestComputeStatuses_DirectlyBlockedUnitIsBlocked(t *testing.T) {
	snap := Snapshot{
		Done:    map[string]bool{"wu_1": true},
		Blocked: map[string]bool{"wu_2": true},
	}
	statuses := ComputeStatuses(linearPlan(), snap)
	assert.Equal(t, StatusBlocked, statuses["wu_2"])
}

func TestComputeStatuses_BlockedPropagatesToDependents(t *testing.T) {
	snap := Snapshot{
		Done:    map[string]bool{"wu_1": true},
		Blocked: map[string]bool{"wu_2": true},
	}
	statuses := ComputeStatuses(linearPlan(), snap)
	assert.Equal(t, StatusBlocked, statuses["wu_3"], "wu_3 depends on blocked wu_2")
}

func TestEligibleSet_IsSortedAndContainsOnlyEligibleUnits(t *testing.T) {
	plan := PlanInstance{
		WorkUnits: []WorkUnit{{ID: "wu_z"}, {ID: "wu_a"}, {ID: "wu_m"}},
	}
	statuses := ComputeStatuses(plan, Snapshot{})
	eligible := EligibleSet(statuses)
	assert.Equal(t, []string{"wu_a", "wu_m", "wu_z"}, eligible)
}

func TestEligibleSet_IsDeterministicGivenSameInputs(t *testing.T) {
	plan := linearPlan()
	snap := Snapshot{Done: map[string]bool{"wu_1": true, "wu_2": true}}
	a := EligibleSet(ComputeStatuses(plan, snap))
	b := EligibleSet(ComputeStatuses(plan, snap))
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"wu_3"}, a)
}

package governor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/governedloop/core/pkg/config"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/eventmanager"
	"github.com/governedloop/core/pkg/projection"
)

func activeLoop(t *testing.T, store eventlog.Store, loopID string, budgets map[string]any) {
	t.Helper()
	_, err := store.Append(context.Background(), loopID, "Loop", 0, []eventlog.EventInput{
		{
			EventType: "LoopCreated",
			ActorKind: eventlog.ActorHuman,
			ActorID:   "operator",
			Payload:   map[string]any{"goal": "ship it", "work_unit": "wu_1", "budgets": budgets},
		},
	})
	require.NoError(t, err)
	_, err = store.Append(context.Background(), loopID, "Loop", 1, []eventlog.EventInput{
		{EventType: "LoopActivated", ActorKind: eventlog.ActorHuman, ActorID: "operator"},
	})
	require.NoError(t, err)
}

func rebuild(t *testing.T, store eventlog.Store) *projection.State {
	t.Helper()
	p := projection.NewProjector(store, nil)
	s, err := p.Rebuild(context.Background())
	require.NoError(t, err)
	return s
}

type eligiblePlans struct{ empty bool }

func (e eligiblePlans) Resolve(loopID string) (eventmanager.PlanInstance, eventmanager.Snapshot, bool) {
	plan := eventmanager.PlanInstance{WorkUnits: []eventmanager.WorkUnit{{ID: "wu_1"}}}
	if e.empty {
		return plan, eventmanager.Snapshot{InProgress: map[string]bool{"wu_1": true}}, true
	}
	return plan, eventmanager.Snapshot{}, true
}

type noIntegrity struct{}

func (noIntegrity) ConditionsFor(string) []string { return nil }

type fixedIntegrity struct{ conditions []string }

func (f fixedIntegrity) ConditionsFor(string) []string { return f.conditions }

func TestSweepOnce_EmitsIterationStartedForEligibleActiveLoop(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", map[string]any{"max_iterations": float64(5)})
	state := rebuild(t, store)

	g := NewGovernor(store, func() *projection.State { return state }, nil, noIntegrity{}, nil, nil, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.EventType == "IterationStarted" {
			found = true
			assert.Equal(t, eventlog.ActorSystem, e.ActorKind)
			assert.Equal(t, "loop_1", e.Payload["loop_id"])
		}
	}
	assert.True(t, found, "expected an IterationStarted event")
}

func TestSweepOnce_SkipsLoopWithActiveIteration(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", nil)
	_, err := store.Append(context.Background(), "iter_1", "Iteration", 0, []eventlog.EventInput{
		{EventType: "IterationStarted", ActorKind: eventlog.ActorSystem, ActorID: "governor",
			Payload: map[string]any{"loop_id": "loop_1", "sequence": 1}},
	})
	require.NoError(t, err)
	state := rebuild(t, store)

	g := NewGovernor(store, func() *projection.State { return state }, nil, noIntegrity{}, nil, nil, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	count := 0
	for _, e := range events {
		if e.EventType == "IterationStarted" {
			count++
		}
	}
	assert.Equal(t, 1, count, "governor must not start a second concurrent iteration")
}

func TestSweepOnce_EmitsStopTriggeredOnBudgetExhaustion(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", map[string]any{"max_iterations": float64(1)})
	_, err := store.Append(context.Background(), "iter_1", "Iteration", 0, []eventlog.EventInput{
		{EventType: "IterationStarted", ActorKind: eventlog.ActorSystem, ActorID: "governor",
			Payload: map[string]any{"loop_id": "loop_1", "sequence": 1}},
	})
	require.NoError(t, err)
	_, err = store.Append(context.Background(), "iter_1", "Iteration", 1, []eventlog.EventInput{
		{EventType: "IterationCompleted", ActorKind: eventlog.ActorSystem, ActorID: "governor",
			Payload: map[string]any{"summary": "done"}},
	})
	require.NoError(t, err)
	state := rebuild(t, store)
	require.Equal(t, 1, state.Loops["loop_1"].IterationCount)

	g := NewGovernor(store, func() *projection.State { return state }, nil, noIntegrity{}, nil, nil, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.EventType == "StopTriggered" {
			found = true
			assert.Equal(t, "BUDGET_EXHAUSTED", e.Payload["reason"])
		}
	}
	assert.True(t, found, "expected a StopTriggered event for budget exhaustion")
}

func TestSweepOnce_SkipsLoopWhenEligibleSetIsEmpty(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", nil)
	state := rebuild(t, store)

	g := NewGovernor(store, func() *projection.State { return state }, eligiblePlans{empty: true}, noIntegrity{}, nil, nil, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	for _, e := range events {
		assert.NotEqual(t, "IterationStarted", e.EventType)
	}
}

func TestSweepOnce_EmitsStopTriggeredOnIntegrityCondition(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", nil)
	state := rebuild(t, store)

	g := NewGovernor(store, func() *projection.State { return state }, nil, fixedIntegrity{conditions: []string{"ORACLE_TAMPER"}}, nil,
		[]config.PortalConfig{{Name: "ops-review", Kind: "human"}, {Name: "exc-portal", Kind: "exception"}}, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.EventType == "StopTriggered" {
			found = true
			assert.Equal(t, "INTEGRITY_CONDITION", e.Payload["reason"])
			assert.Equal(t, "exc-portal", e.Payload["recommended_portal"])
			assert.False(t, e.OccurredAt.IsZero())
		}
	}
	assert.True(t, found, "expected a StopTriggered event for an integrity condition")
}

func TestSweepOnce_RecommendedPortalDefaultsWhenNoneConfigured(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", nil)
	state := rebuild(t, store)

	g := NewGovernor(store, func() *projection.State { return state }, nil, fixedIntegrity{conditions: []string{"ORACLE_GAP"}}, nil, nil, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	for _, e := range events {
		if e.EventType == "StopTriggered" {
			assert.Equal(t, "HumanAuthorityExceptionProcess", e.Payload["recommended_portal"])
		}
	}
}

func TestSweepOnce_IterationStartedStampsOccurredAt(t *testing.T) {
	store := eventlog.NewMemoryStore()
	activeLoop(t, store, "loop_1", map[string]any{"max_iterations": float64(5)})
	state := rebuild(t, store)

	g := NewGovernor(store, func() *projection.State { return state }, nil, noIntegrity{}, nil, nil, nil)
	require.NoError(t, g.SweepOnce(context.Background()))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	for _, e := range events {
		if e.EventType == "IterationStarted" {
			assert.False(t, e.OccurredAt.IsZero())
		}
	}
}

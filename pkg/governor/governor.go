// Package governor implements the loop governor (§4.11): a cron-scheduled
// sweep that, per active loop, emits IterationStarted when budget and
// eligibility allow, or StopTriggered when a budget is exhausted or an
// integrity condition has arisen. Every start or stop decision is
// recorded as an event; a loop the sweep skips (an iteration already
// active, or nothing eligible) produces no event, only a decision metric.
package governor

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/governedloop/core/pkg/config"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/eventmanager"
	"github.com/governedloop/core/pkg/ids"
	"github.com/governedloop/core/pkg/obsv"
	"github.com/governedloop/core/pkg/ports"
	"github.com/governedloop/core/pkg/projection"
)

// defaultExceptionPortal is §8's named portal for integrity-condition
// stops when no portal of kind "exception" is configured.
const defaultExceptionPortal = "HumanAuthorityExceptionProcess"

// systemClock is the default ports.Clock when NewGovernor isn't given
// one explicitly.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// PlanResolver looks up the plan instance and live status snapshot
// backing a loop's eligible-set computation. ok is false when the loop
// has no plan instance — per §4.11, such a loop is eligible by default
// as long as it has context refs, which the governor takes as given
// once a loop reaches ACTIVE.
type PlanResolver interface {
	Resolve(loopID string) (plan eventmanager.PlanInstance, snap eventmanager.Snapshot, ok bool)
}

// IntegrityLookup reports any non-waivable integrity conditions
// currently open against a loop's iterations, used to trigger a stop
// independent of budget exhaustion.
type IntegrityLookup interface {
	ConditionsFor(loopID string) []string
}

// Governor is the loop governor's runtime: one cron-scheduled sweep
// over the current projected state.
type Governor struct {
	store   eventlog.Store
	state   func() *projection.State
	plans   PlanResolver
	checker IntegrityLookup
	clock   ports.Clock
	portals []config.PortalConfig
	log     *slog.Logger
	cron    *cron.Cron
}

// NewGovernor wires a Governor. state must return the projection's
// current, up-to-date snapshot (the caller owns synchronising
// CatchUp with sweep reads). plans and checker may be nil; a nil
// plans resolver treats every loop as having no plan instance, a nil
// checker reports no integrity conditions. clock may be nil (defaults
// to the real wall clock); portals seeds the human-facing portals a
// StopTriggered's recommended_portal is resolved against.
func NewGovernor(store eventlog.Store, state func() *projection.State, plans PlanResolver, checker IntegrityLookup, clock ports.Clock, portals []config.PortalConfig, log *slog.Logger) *Governor {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Governor{store: store, state: state, plans: plans, checker: checker, clock: clock, portals: portals, log: log}
}

// recommendedPortal resolves §8's StopTriggered.recommended_portal:
// the configured portal of kind "exception", or the spec's named
// default when none is seeded.
func (g *Governor) recommendedPortal() string {
	for _, p := range g.portals {
		if strings.EqualFold(p.Kind, "exception") {
			return p.Name
		}
	}
	return defaultExceptionPortal
}

// Start schedules the governor sweep (default: every 2 seconds) and
// blocks until ctx is cancelled.
func (g *Governor) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@every 2s"
	}
	g.cron = cron.New()
	_, err := g.cron.AddFunc(schedule, func() {
		if err := g.SweepOnce(ctx); err != nil {
			g.log.Error("governor: sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	g.cron.Start()
	<-ctx.Done()
	stopCtx := g.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// SweepOnce evaluates every loop once against §4.11's rules. Loops are
// visited in sorted loop_id order so a sweep's event sequence is
// reproducible across runs given the same snapshot.
func (g *Governor) SweepOnce(ctx context.Context) error {
	snap := g.state()
	if snap == nil {
		return nil
	}

	loopIDs := make([]string, 0, len(snap.Loops))
	for id := range snap.Loops {
		loopIDs = append(loopIDs, id)
	}
	sort.Strings(loopIDs)

	for _, loopID := range loopIDs {
		loop := snap.Loops[loopID]
		if loop.State != "ACTIVE" {
			continue
		}

		if g.checker != nil {
			if conditions := g.checker.ConditionsFor(loopID); len(conditions) > 0 {
				if err := g.emitStop(ctx, loopID, "INTEGRITY_CONDITION", conditions); err != nil {
					return err
				}
				obsv.RecordGovernorDecision("stop_integrity_condition")
				continue
			}
		}

		if hasActiveIteration(snap, loopID) {
			obsv.RecordGovernorDecision("skipped_active_iteration")
			continue
		}

		maxIterations, budgeted := maxIterationsOf(loop.Budgets)
		if budgeted && loop.IterationCount >= maxIterations {
			if err := g.emitStop(ctx, loopID, "BUDGET_EXHAUSTED", nil); err != nil {
				return err
			}
			obsv.RecordGovernorDecision("stop_budget_exhausted")
			continue
		}

		if !g.loopIsEligible(loopID) {
			obsv.RecordGovernorDecision("skipped_not_eligible")
			continue
		}

		if err := g.emitIterationStarted(ctx, loop); err != nil {
			return err
		}
		obsv.RecordGovernorDecision("iteration_started")
	}
	return nil
}

func (g *Governor) loopIsEligible(loopID string) bool {
	if g.plans == nil {
		return true
	}
	plan, snap, ok := g.plans.Resolve(loopID)
	if !ok {
		return true
	}
	statuses := eventmanager.ComputeStatuses(plan, snap)
	eligible := eventmanager.EligibleSet(statuses)
	if plan.PlanID != "" {
		obsv.ObserveEligibleSetSize(plan.PlanID, len(eligible))
	}
	return len(eligible) > 0
}

func hasActiveIteration(snap *projection.State, loopID string) bool {
	for _, it := range snap.Iterations {
		if it.LoopID == loopID && it.State == "STARTED" {
			return true
		}
	}
	return false
}

// streamVersion returns a stream's current length by reading it in
// full — the governor only needs this for the occasional StopTriggered
// append, so a dedicated "current version" port method isn't
// warranted; IterationStarted instead opens a brand-new stream at
// version 0 and never needs this.
func (g *Governor) streamVersion(ctx context.Context, streamID string) (int, error) {
	const pageSize = 500
	total := 0
	for {
		events, err := g.store.ReadStream(ctx, streamID, total+1, pageSize)
		if err != nil {
			return 0, err
		}
		total += len(events)
		if len(events) < pageSize {
			return total, nil
		}
	}
}

func maxIterationsOf(budgets map[string]any) (int, bool) {
	if budgets == nil {
		return 0, false
	}
	v, ok := budgets["max_iterations"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (g *Governor) emitIterationStarted(ctx context.Context, loop *projection.Loop) error {
	iterationID := ids.New(ids.KindIteration)
	_, err := g.store.Append(ctx, iterationID, "Iteration", 0, []eventlog.EventInput{{
		EventType:  "IterationStarted",
		OccurredAt: g.clock.Now(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "governor",
		Refs: []eventlog.Ref{
			{Kind: "Loop", ID: loop.LoopID, Rel: eventlog.RelAbout},
		},
		Payload: map[string]any{
			"loop_id":  loop.LoopID,
			"sequence": loop.IterationCount + 1,
		},
	}})
	if err != nil {
		g.log.Error("governor: emit IterationStarted failed", "loop_id", loop.LoopID, "error", err)
	}
	return err
}

func (g *Governor) emitStop(ctx context.Context, loopID, reason string, conditions []string) error {
	version, err := g.streamVersion(ctx, loopID)
	if err != nil {
		g.log.Error("governor: read loop stream version failed", "loop_id", loopID, "error", err)
		return err
	}
	_, err = g.store.Append(ctx, loopID, "Loop", version, []eventlog.EventInput{{
		EventType:  "StopTriggered",
		OccurredAt: g.clock.Now(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "governor",
		Refs: []eventlog.Ref{
			{Kind: "Loop", ID: loopID, Rel: eventlog.RelAbout},
		},
		Payload: map[string]any{
			"loop_id":              loopID,
			"reason":               reason,
			"integrity_conditions": conditions,
			"recommended_portal":   g.recommendedPortal(),
		},
	}})
	if err != nil {
		g.log.Error("governor: emit StopTriggered failed", "loop_id", loopID, "error", err)
	}
	return err
}

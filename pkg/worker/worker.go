// Package worker implements the worker bridge (§2 item 13, §3.13): the
// adapter layer between the core's IterationStarted events and an
// opaque external worker reached through the WorkerInvoker port.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/governedloop/core/pkg/bus"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/ids"
	"github.com/governedloop/core/pkg/ports"
)

// systemClock is the default ports.Clock when NewBridge isn't given
// one explicitly.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Bridge consumes IterationStarted, compiles a deterministic context
// bundle from the event's refs, invokes the worker, and records the
// outcome as CandidateMaterialized + IterationCompleted, or
// IterationFailed on a worker-reported failure.
type Bridge struct {
	Events  eventlog.Store
	Bus     bus.MessageBus
	Invoker ports.WorkerInvoker
	Clock   ports.Clock
	Log     *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewBridge wires a Bridge. clock may be nil (defaults to the real
// wall clock).
func NewBridge(events eventlog.Store, b bus.MessageBus, invoker ports.WorkerInvoker, clock ports.Clock, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Bridge{Events: events, Bus: b, Invoker: invoker, Clock: clock, Log: log, seen: make(map[string]bool)}
}

// Start subscribes to the IterationStarted topic and processes
// messages until ctx is cancelled. Delivery is at-least-once; Bridge
// dedupes by event_id so redelivery of an already-handled
// IterationStarted is a no-op (§6's "consumers are idempotent by
// event_id").
func (br *Bridge) Start(ctx context.Context) error {
	ch, err := br.Bus.Subscribe(ctx, "IterationStarted")
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e eventlog.Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				br.Log.Error("worker: malformed IterationStarted payload", "error", err)
				continue
			}
			if br.alreadyHandled(e.EventID) {
				continue
			}
			if err := br.HandleIterationStarted(ctx, e); err != nil {
				br.Log.Error("worker: handling IterationStarted failed", "iteration_id", e.StreamID, "error", err)
				continue
			}
			br.markHandled(e.EventID)
		}
	}
}

func (br *Bridge) alreadyHandled(eventID string) bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.seen[eventID]
}

func (br *Bridge) markHandled(eventID string) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.seen[eventID] = true
}

// HandleIterationStarted is the synchronous worker-bridge pipeline,
// exposed directly so it can also be driven from a replay loop instead
// of the bus.
func (br *Bridge) HandleIterationStarted(ctx context.Context, e eventlog.Event) error {
	if e.EventType != "IterationStarted" {
		return nil
	}

	bundle := compileContextBundle(e.Refs)
	result, err := br.Invoker.Invoke(ctx, ports.WorkerInvokeRequest{
		IterationID: e.StreamID,
		ContextRefs: bundle,
	})
	if err != nil {
		return br.failIteration(ctx, e, err.Error())
	}
	if result.Failed {
		return br.failIteration(ctx, e, result.FailureReason)
	}

	candidateID := ids.CandidateID(e.StreamID, result.CandidateContentHash)
	if _, err := br.Events.Append(ctx, candidateID, "Candidate", 0, []eventlog.EventInput{{
		EventType:  "CandidateMaterialized",
		OccurredAt: br.Clock.Now(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "worker-bridge",
		Refs: []eventlog.Ref{
			{Kind: "Iteration", ID: e.StreamID, Rel: eventlog.RelProduces},
		},
		Payload: map[string]any{
			"content_hash":             result.CandidateContentHash,
			"produced_by_iteration_id": e.StreamID,
		},
	}}); err != nil {
		return err
	}

	_, err = br.Events.Append(ctx, e.StreamID, "Iteration", e.StreamSeq, []eventlog.EventInput{{
		EventType:  "IterationCompleted",
		OccurredAt: br.Clock.Now(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "worker-bridge",
		Refs: []eventlog.Ref{
			{Kind: "Candidate", ID: candidateID, Rel: eventlog.RelProduces, Meta: map[string]any{"content_hash": result.CandidateContentHash}},
		},
		Payload: map[string]any{
			"summary": result.Summary,
		},
	}})
	return err
}

func (br *Bridge) failIteration(ctx context.Context, e eventlog.Event, reason string) error {
	_, err := br.Events.Append(ctx, e.StreamID, "Iteration", e.StreamSeq, []eventlog.EventInput{{
		EventType:  "IterationFailed",
		OccurredAt: br.Clock.Now(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "worker-bridge",
		Payload: map[string]any{
			"summary": reason,
		},
	}})
	return err
}

// compileContextBundle derives the deterministic context bundle from
// an event's refs: content-addressed refs only, sorted by (kind, id,
// content_hash) so two replays of the same prefix always compile the
// same bundle regardless of refs-slice order.
func compileContextBundle(refs []eventlog.Ref) []ports.ContextRef {
	var out []ports.ContextRef
	for _, r := range refs {
		hash, ok := r.ContentHash()
		if !ok {
			continue
		}
		out = append(out, ports.ContextRef{Kind: r.Kind, ID: r.ID, ContentHash: hash})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].ContentHash < out[j].ContentHash
	})
	return out
}

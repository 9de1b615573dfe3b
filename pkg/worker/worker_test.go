package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/ports"
)

type fakeInvoker struct {
	result ports.WorkerInvokeResult
	err    error
	got    ports.WorkerInvokeRequest
}

func (f *fakeInvoker) Invoke(ctx context.Context, req ports.WorkerInvokeRequest) (ports.WorkerInvokeResult, error) {
	f.got = req
	return f.result, f.err
}

func startedEvent(t *testing.T, store eventlog.Store, refs []eventlog.Ref) eventlog.Event {
	t.Helper()
	events, err := store.Append(context.Background(), "iter_1", "Iteration", 0, []eventlog.EventInput{{
		EventType: "IterationStarted",
		ActorKind: eventlog.ActorSystem,
		ActorID:   "governor",
		Refs:      refs,
		Payload:   map[string]any{"loop_id": "loop_1", "sequence": 1},
	}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestHandleIterationStarted_SuccessEmitsCandidateAndCompletion(t *testing.T) {
	store := eventlog.NewMemoryStore()
	e := startedEvent(t, store, nil)
	invoker := &fakeInvoker{result: ports.WorkerInvokeResult{CandidateContentHash: "sha256:abc", Summary: "shipped it"}}
	br := NewBridge(store, nil, invoker, nil, nil)

	require.NoError(t, br.HandleIterationStarted(context.Background(), e))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)

	var sawCandidate, sawCompleted bool
	for _, ev := range events {
		switch ev.EventType {
		case "CandidateMaterialized":
			sawCandidate = true
			assert.Equal(t, "sha256:abc", ev.Payload["content_hash"])
			assert.Contains(t, ev.StreamID, "iter_1|sha256:abc|cand_")
			assert.False(t, ev.OccurredAt.IsZero())
		case "IterationCompleted":
			sawCompleted = true
			assert.Equal(t, "shipped it", ev.Payload["summary"])
			assert.False(t, ev.OccurredAt.IsZero())
		}
	}
	assert.True(t, sawCandidate, "expected CandidateMaterialized")
	assert.True(t, sawCompleted, "expected IterationCompleted")
}

func TestHandleIterationStarted_WorkerReportedFailureEmitsIterationFailed(t *testing.T) {
	store := eventlog.NewMemoryStore()
	e := startedEvent(t, store, nil)
	invoker := &fakeInvoker{result: ports.WorkerInvokeResult{Failed: true, FailureReason: "timeout"}}
	br := NewBridge(store, nil, invoker, nil, nil)

	require.NoError(t, br.HandleIterationStarted(context.Background(), e))

	events, err := store.ReplayAll(context.Background(), 0, 100)
	require.NoError(t, err)
	found := false
	for _, ev := range events {
		if ev.EventType == "IterationFailed" {
			found = true
			assert.Equal(t, "timeout", ev.Payload["summary"])
			assert.False(t, ev.OccurredAt.IsZero())
		}
		assert.NotEqual(t, "CandidateMaterialized", ev.EventType)
	}
	assert.True(t, found, "expected IterationFailed")
}

func TestCompileContextBundle_SortsAndDropsRefsWithoutContentHash(t *testing.T) {
	refs := []eventlog.Ref{
		{Kind: "Candidate", ID: "cand_2", Rel: eventlog.RelAbout, Meta: map[string]any{"content_hash": "sha256:zzz"}},
		{Kind: "Candidate", ID: "cand_1", Rel: eventlog.RelAbout, Meta: map[string]any{"content_hash": "sha256:aaa"}},
		{Kind: "Loop", ID: "loop_1", Rel: eventlog.RelAbout},
	}
	bundle := compileContextBundle(refs)
	require.Len(t, bundle, 2)
	assert.Equal(t, "cand_1", bundle[0].ID)
	assert.Equal(t, "cand_2", bundle[1].ID)
}
